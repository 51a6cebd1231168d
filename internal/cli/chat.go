package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/compiletutor/internal/diagnosis"
)

var chatCmd = &cobra.Command{
	Use:   "chat FILE",
	Short: "Analyze a file, then ask follow-up questions interactively",
	Long: `Run the initial analysis of FILE and then read questions from stdin, one
per line. Commands:
  /clear     forget the conversation
  /analyze   re-run the analysis (e.g. after editing FILE)
  /history   print the conversation so far
  /quit      exit`,
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

		out := cmd.OutOrStdout()
		file := args[0]
		analyze := func() {
			res, err := p.RunInitialAnalysis(cmd.Context(), file, readSource(file))
			fmt.Fprintf(out, "== %s ==\n%s\n", file, res.Outcome.Describe())
			if err != nil {
				fmt.Fprintf(out, "error: %s\n", diagnosis.Message(err))
				return
			}
			fmt.Fprintf(out, "\n%s\n", res.Analysis)
		}
		analyze()

		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for {
			fmt.Fprint(out, "\n> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/clear":
				p.Clear()
				fmt.Fprintln(out, "Conversation cleared.")
				continue
			case "/analyze":
				analyze()
				continue
			case "/history":
				for _, t := range p.Transcript() {
					fmt.Fprintf(out, "[%d] %s: %s\n", t.Seq, t.Role, t.Content)
				}
				continue
			}

			answer, err := p.AskFollowUp(cmd.Context(), line)
			if err != nil {
				fmt.Fprintf(out, "error: %s\n", diagnosis.Message(err))
				continue
			}
			fmt.Fprintln(out, answer)
		}
	},
}
