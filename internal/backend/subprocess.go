package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/compiletutor/internal/process"
)

// SubprocessConfig configures a model served by a separate language runtime.
type SubprocessConfig struct {
	// Runtime is the interpreter, e.g. "python3".
	Runtime string
	// Script is the inference script run by Runtime.
	Script   string
	ModelDir string
	// TempDir holds prompt files; empty means os.TempDir().
	TempDir string
	Timeout time.Duration
}

// Subprocess runs a fixed inference script per call. The prompt is passed in
// a temporary file, never as an argument, and the script prints the
// generated text on stdout.
type Subprocess struct {
	cfg      SubprocessConfig
	runner   process.Runner
	progress io.Writer
}

// NewSubprocess creates a subprocess backend using runner to spawn the script.
func NewSubprocess(runner process.Runner, cfg SubprocessConfig) *Subprocess {
	if cfg.Runtime == "" {
		cfg.Runtime = "python3"
	}
	return &Subprocess{cfg: cfg, runner: runner}
}

// SetProgress sets the writer for progress logging.
func (s *Subprocess) SetProgress(w io.Writer) {
	s.progress = w
}

func (s *Subprocess) logf(format string, args ...any) {
	if s.progress != nil {
		fmt.Fprintf(s.progress, format+"\n", args...)
	}
}

func (s *Subprocess) Name() string { return "subprocess:" + filepath.Base(s.cfg.ModelDir) }

// Generate writes the prompt to a temp file, runs the script and returns its stdout.
// The temp file is removed on every path.
func (s *Subprocess) Generate(ctx context.Context, req Request) (string, error) {
	info, err := os.Stat(s.cfg.ModelDir)
	if err != nil || !info.IsDir() {
		return "", &ModelNotFoundError{Path: s.cfg.ModelDir}
	}

	f, err := os.CreateTemp(s.cfg.TempDir, "tutor-prompt-*.txt")
	if err != nil {
		return "", unavailable(s.Name(), fmt.Errorf("create prompt file: %w", err))
	}
	promptPath := f.Name()
	defer os.Remove(promptPath)

	_, werr := f.WriteString(transcript(req))
	cerr := f.Close()
	if werr != nil {
		return "", unavailable(s.Name(), fmt.Errorf("write prompt file: %w", werr))
	}
	if cerr != nil {
		return "", unavailable(s.Name(), fmt.Errorf("close prompt file: %w", cerr))
	}

	args := []string{s.cfg.Script, "--model", s.cfg.ModelDir, "--prompt-file", promptPath}
	if req.Options.MaxNewTokens > 0 {
		args = append(args, "--max-new-tokens", strconv.Itoa(req.Options.MaxNewTokens))
	}
	if req.Options.Temperature != nil {
		args = append(args, "--temperature", strconv.FormatFloat(*req.Options.Temperature, 'f', -1, 64))
	}
	if req.Options.RepetitionPenalty != nil {
		args = append(args, "--repetition-penalty", strconv.FormatFloat(*req.Options.RepetitionPenalty, 'f', -1, 64))
	}

	s.logf("running %s %s", s.cfg.Runtime, s.cfg.Script)
	res, err := s.runner.Run(ctx, s.cfg.Runtime, args, process.Options{Timeout: s.cfg.Timeout})
	if err != nil {
		return "", unavailable(s.Name(), err)
	}
	if res.TimedOut {
		return "", &UnavailableError{Backend: s.Name(), Detail: fmt.Sprintf("timed out after %s", s.cfg.Timeout), Err: context.DeadlineExceeded}
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		code := "signal"
		if res.ExitCode != nil {
			code = strconv.Itoa(*res.ExitCode)
		}
		return "", &UnavailableError{Backend: s.Name(), Detail: fmt.Sprintf("exit %s: %s", code, strings.TrimSpace(res.Stderr))}
	}
	text := strings.TrimSpace(res.Stdout)
	if text == "" {
		return "", &UnavailableError{Backend: s.Name(), Detail: "empty output"}
	}
	return text, nil
}
