package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultOutputLimit caps each captured stream when Options.OutputLimit is zero.
const DefaultOutputLimit = 1 << 20

// TruncationMarker is appended to a stream that hit its output limit.
const TruncationMarker = "\n...[output truncated]"

// Result holds the captured output of a finished process.
type Result struct {
	// ExitCode is nil when the process did not exit normally (killed by a signal).
	ExitCode  *int
	Stdout    string
	Stderr    string
	Truncated bool
	TimedOut  bool
	Duration  time.Duration
}

// Options controls a single process invocation.
type Options struct {
	Dir     string
	Timeout time.Duration
	// MergeOutput sends stderr into the stdout buffer in arrival order.
	MergeOutput bool
	// OutputLimit is the per-stream byte ceiling. Zero means DefaultOutputLimit,
	// negative means unlimited.
	OutputLimit int
}

// SpawnError reports that the executable could not be launched at all.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts Options) (*Result, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// Run starts name with args and blocks until it exits. A non-zero exit is a
// normal Result; only a launch failure returns an error.
func (e *ExecRunner) Run(ctx context.Context, name string, args []string, opts Options) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	limit := opts.OutputLimit
	if limit == 0 {
		limit = DefaultOutputLimit
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	// Bound how long Wait blocks on pipes held open by grandchildren after a kill.
	cmd.WaitDelay = 2 * time.Second

	stdout := newCappedBuffer(limit)
	stderr := stdout
	if !opts.MergeOutput {
		stderr = newCappedBuffer(limit)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{Duration: time.Since(start)}

	if cmd.ProcessState == nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.TimedOut = true
			return res, nil
		}
		return nil, &SpawnError{Command: name, Err: err}
	}

	res.ExitCode = exitCodeOf(cmd.ProcessState)
	res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	res.Stdout = stdout.String()
	res.Truncated = stdout.Truncated()
	if !opts.MergeOutput {
		res.Stderr = stderr.String()
		res.Truncated = res.Truncated || stderr.Truncated()
	}
	return res, nil
}

// exitCodeOf returns nil for a process terminated by a signal.
func exitCodeOf(ps *os.ProcessState) *int {
	code := ps.ExitCode()
	if code < 0 {
		return nil
	}
	return &code
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
