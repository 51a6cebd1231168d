package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/compiletutor/internal/diagnosis"
	"github.com/lucasnoah/compiletutor/internal/toolchain"
)

type followUpResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

type analyzeResult struct {
	File      string            `json:"file"`
	Outcome   toolchain.Outcome `json:"outcome"`
	Analysis  string            `json:"analysis,omitempty"`
	Error     string            `json:"error,omitempty"`
	FollowUps []followUpResult  `json:"follow_ups,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Compile and run a C/C++ file and explain the result",
	Long: `Compile and run FILE, then ask the configured backend to explain the
outcome. Each --ask adds a follow-up question answered in the same
conversation, in order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		p, _, cleanup, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		noSource, _ := cmd.Flags().GetBool("no-source")
		questions, _ := cmd.Flags().GetStringArray("ask")
		format, _ := cmd.Flags().GetString("format")

		file := args[0]
		var source *string
		if !noSource {
			source = readSource(file)
		}

		res, err := p.RunInitialAnalysis(cmd.Context(), file, source)
		out := analyzeResult{File: file, Outcome: res.Outcome, Analysis: res.Analysis}
		if err != nil {
			out.Error = diagnosis.Message(err)
		} else {
			for _, q := range questions {
				answer, qerr := p.AskFollowUp(cmd.Context(), q)
				fu := followUpResult{Question: q, Answer: answer}
				if qerr != nil {
					fu.Error = diagnosis.Message(qerr)
				}
				out.FollowUps = append(out.FollowUps, fu)
			}
		}

		if format == "json" {
			if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
				return werr
			}
		} else {
			printAnalysis(cmd.OutOrStdout(), out)
		}
		if out.Error != "" {
			return errors.New(out.Error)
		}
		return nil
	},
}

// readSource returns the file text, or nil when it cannot be read. The
// toolchain reports a missing file on its own.
func readSource(path string) *string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnalysis(w io.Writer, r analyzeResult) {
	fmt.Fprintf(w, "== %s ==\n%s\n", r.File, r.Outcome.Describe())
	if r.Analysis != "" {
		fmt.Fprintf(w, "\n== Explanation ==\n%s\n", r.Analysis)
	}
	for _, fu := range r.FollowUps {
		fmt.Fprintf(w, "\n== Q: %s ==\n", fu.Question)
		if fu.Error != "" {
			fmt.Fprintf(w, "error: %s\n", fu.Error)
			continue
		}
		fmt.Fprintln(w, fu.Answer)
	}
}

func init() {
	analyzeCmd.Flags().StringArray("ask", nil, "follow-up question (repeatable)")
	analyzeCmd.Flags().Bool("no-source", false, "do not include the source text in the prompt")
	analyzeCmd.Flags().String("format", "text", "Output format: text or json")
}
