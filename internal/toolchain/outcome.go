package toolchain

import (
	"fmt"
	"time"
)

// Kind identifies which variant an Outcome holds.
type Kind string

const (
	KindUnsupported   Kind = "unsupported"
	KindCompileFailed Kind = "compile_failed"
	KindRanWithOutput Kind = "ran_with_output"
	KindRanNoOutput   Kind = "ran_no_output"
	KindExecFailed    Kind = "exec_failed"
	KindTimedOut      Kind = "timed_out"
)

// Outcome is the tagged result of compiling and running one source file.
// Only the fields belonging to Kind are meaningful.
type Outcome struct {
	Kind Kind `json:"kind"`

	// Unsupported
	Extension string `json:"extension,omitempty"`

	// CompileFailed: trimmed compiler stderr. RanWithOutput: merged, trimmed
	// program output. ExecFailed: the launch failure reason.
	Text        string       `json:"text,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// RanNoOutput and RanWithOutput. Nil when the program was killed by a signal.
	ExitCode *int `json:"exit_code,omitempty"`

	// TimedOut
	Stage string        `json:"stage,omitempty"`
	After time.Duration `json:"after,omitempty"`
}

func Unsupported(ext string) Outcome {
	return Outcome{Kind: KindUnsupported, Extension: ext}
}

func CompileFailed(stderr string, diags []Diagnostic) Outcome {
	return Outcome{Kind: KindCompileFailed, Text: stderr, Diagnostics: diags}
}

func RanWithOutput(text string, exitCode *int) Outcome {
	return Outcome{Kind: KindRanWithOutput, Text: text, ExitCode: exitCode}
}

func RanNoOutput(exitCode *int) Outcome {
	return Outcome{Kind: KindRanNoOutput, ExitCode: exitCode}
}

func ExecFailed(reason string) Outcome {
	return Outcome{Kind: KindExecFailed, Text: reason}
}

func TimedOut(stage string, after time.Duration) Outcome {
	return Outcome{Kind: KindTimedOut, Stage: stage, After: after}
}

// Failed reports whether the outcome describes a problem the learner should
// hear about: a compile error, a launch failure, a timeout, or a program that
// did not exit cleanly.
func (o Outcome) Failed() bool {
	switch o.Kind {
	case KindCompileFailed, KindExecFailed, KindTimedOut:
		return true
	case KindRanWithOutput, KindRanNoOutput:
		return o.ExitCode == nil || *o.ExitCode != 0
	}
	return false
}

// Describe renders the outcome as the single human-readable string that is
// handed to the prompt builder.
func (o Outcome) Describe() string {
	switch o.Kind {
	case KindUnsupported:
		if o.Extension == "" {
			return "Unsupported file type: the file has no extension. Only C (.c) and C++ (.cpp, .cc, .cxx) sources can be compiled."
		}
		return fmt.Sprintf("Unsupported file type %q. Only C (.c) and C++ (.cpp, .cc, .cxx) sources can be compiled.", o.Extension)
	case KindCompileFailed:
		return "Compilation failed:\n" + o.Text
	case KindRanWithOutput:
		if o.ExitCode != nil && *o.ExitCode != 0 {
			return fmt.Sprintf("Program output (exit code %d):\n%s", *o.ExitCode, o.Text)
		}
		if o.ExitCode == nil {
			return "Program output (terminated by a signal):\n" + o.Text
		}
		return "Program output:\n" + o.Text
	case KindRanNoOutput:
		if o.ExitCode == nil {
			return "Program was terminated by a signal and produced no output."
		}
		return fmt.Sprintf("Program ran with no output (exit code %d).", *o.ExitCode)
	case KindExecFailed:
		return "Execution failed: " + o.Text
	case KindTimedOut:
		return fmt.Sprintf("The %s step timed out after %s.", o.Stage, o.After)
	}
	return string(o.Kind)
}
