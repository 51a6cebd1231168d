package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lucasnoah/compiletutor/internal/backend"
	"github.com/lucasnoah/compiletutor/internal/prompt"
	"github.com/lucasnoah/compiletutor/internal/session"
	"github.com/lucasnoah/compiletutor/internal/toolchain"
)

var (
	// ErrNoActiveSession is returned by AskFollowUp before any successful analysis.
	ErrNoActiveSession = errors.New("no active session")
	// ErrBusy is returned when another analysis or follow-up is in flight.
	ErrBusy = errors.New("analysis already in progress")
	// ErrEmptyQuestion is returned for a blank follow-up question.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Compiler compiles and runs one source file. *toolchain.Stage implements it.
type Compiler interface {
	CompileAndRun(ctx context.Context, filePath string) toolchain.Outcome
}

// Recorder persists analyses and turns. Recording failures are logged and
// never fail the pipeline.
type Recorder interface {
	RecordAnalysis(filePath, backendName string, outcome toolchain.Outcome) (int64, error)
	RecordTurn(analysisID int64, turn session.Turn) error
}

// Config holds the generation options and deadline applied to every backend call.
type Config struct {
	Options backend.Options
	// BackendTimeout bounds each backend call; 0 means no deadline.
	BackendTimeout time.Duration
}

// Result is what one initial analysis produced.
type Result struct {
	Outcome toolchain.Outcome
	// Analysis is empty when the backend call failed.
	Analysis string
}

// Pipeline drives one tutoring session: compile and run, prompt, generate,
// then follow-ups against the accumulated turns. Only one analysis or
// follow-up runs at a time; a concurrent call fails fast with ErrBusy.
type Pipeline struct {
	stage    Compiler
	builder  *prompt.Builder
	backend  backend.Backend
	cfg      Config
	recorder Recorder
	progress io.Writer

	busy sync.Mutex

	mu         sync.Mutex
	conv *session.Conversation
	// fileName and anchor describe the analysis the current turns explain.
	// They only change when a new analysis succeeds, while conv's outcome
	// always holds the latest compile result.
	fileName   string
	anchor     *toolchain.Outcome
	analysisID int64
	// epoch changes whenever the turns are reset, so a follow-up that
	// finishes after a clear does not write into the new history.
	epoch uint64
}

// New creates a Pipeline with an empty session.
func New(stage Compiler, builder *prompt.Builder, be backend.Backend, cfg Config) *Pipeline {
	return &Pipeline{
		stage:   stage,
		builder: builder,
		backend: be,
		cfg:     cfg,
		conv:    session.NewConversation(),
	}
}

// SetRecorder enables history recording.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

// SetProgress sets the writer for progress logging.
func (p *Pipeline) SetProgress(w io.Writer) {
	p.progress = w
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.progress != nil {
		fmt.Fprintf(p.progress, format+"\n", args...)
	}
}

// Backend returns the backend the pipeline generates with.
func (p *Pipeline) Backend() backend.Backend { return p.backend }

// RunInitialAnalysis compiles and runs filePath, asks the backend to explain
// the outcome and, on success, restarts the session from that explanation.
// fileText, when non-nil, is embedded in the prompt. On a backend failure the
// turns are left as they were and the outcome is still returned.
func (p *Pipeline) RunInitialAnalysis(ctx context.Context, filePath string, fileText *string) (Result, error) {
	if !p.busy.TryLock() {
		return Result{}, ErrBusy
	}
	defer p.busy.Unlock()

	p.logf("compiling %s", filePath)
	outcome := p.stage.CompileAndRun(ctx, filePath)
	p.logf("outcome: %s", outcome.Kind)

	p.mu.Lock()
	p.conv.SetOutcome(outcome)
	p.mu.Unlock()

	res := Result{Outcome: outcome}
	text, err := p.builder.Build(prompt.Input{
		FileName:  filepath.Base(filePath),
		Extension: filepath.Ext(filePath),
		Source:    fileText,
		Outcome:   outcome,
	})
	if err != nil {
		return res, fmt.Errorf("build prompt: %w", err)
	}

	analysis, err := p.generate(ctx, backend.Request{Prompt: text})
	if err != nil {
		return res, err
	}
	res.Analysis = analysis

	p.mu.Lock()
	turn := p.conv.Start(analysis)
	p.fileName = filepath.Base(filePath)
	p.anchor = &outcome
	p.epoch++
	p.mu.Unlock()

	p.record(func(r Recorder) error {
		id, err := r.RecordAnalysis(filePath, p.backend.Name(), outcome)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.analysisID = id
		p.mu.Unlock()
		return r.RecordTurn(id, turn)
	})
	return res, nil
}

// AskFollowUp appends question as a user turn and asks the backend to answer
// it in the context of the whole history. The user turn stays recorded even
// when the backend fails; only a successful answer adds an assistant turn.
func (p *Pipeline) AskFollowUp(ctx context.Context, question string) (string, error) {
	if !p.busy.TryLock() {
		return "", ErrBusy
	}
	defer p.busy.Unlock()

	p.mu.Lock()
	if !p.conv.Active() {
		p.mu.Unlock()
		return "", ErrNoActiveSession
	}
	if strings.TrimSpace(question) == "" {
		p.mu.Unlock()
		return "", ErrEmptyQuestion
	}
	userTurn := p.conv.Append(session.RoleUser, question)
	turns := p.conv.Turns()
	fileName := p.fileName
	epoch := p.epoch
	analysisID := p.analysisID
	outcome := p.anchor
	p.mu.Unlock()

	p.record(func(r Recorder) error { return r.RecordTurn(analysisID, userTurn) })

	system, err := p.builder.FollowUpInstructions(fileName, outcome)
	if err != nil {
		return "", fmt.Errorf("build follow-up instructions: %w", err)
	}

	answer, err := p.generate(ctx, backend.Request{System: system, PriorTurns: turns})
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.epoch != epoch || !p.conv.Active() {
		p.mu.Unlock()
		p.logf("session cleared during follow-up; answer not recorded")
		return answer, nil
	}
	assistantTurn := p.conv.Append(session.RoleAssistant, answer)
	p.mu.Unlock()

	p.record(func(r Recorder) error { return r.RecordTurn(analysisID, assistantTurn) })
	return answer, nil
}

// Clear drops every turn. It is idempotent and does not wait for an
// in-flight call.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conv.Clear()
	p.epoch++
}

// Transcript returns a copy of the current turns.
func (p *Pipeline) Transcript() []session.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conv.Turns()
}

// Outcome returns the last compile/run outcome, if any.
func (p *Pipeline) Outcome() (toolchain.Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conv.Outcome()
}

// Active reports whether a follow-up can be asked.
func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conv.Active()
}

func (p *Pipeline) generate(ctx context.Context, req backend.Request) (string, error) {
	req.Options = p.cfg.Options
	if p.cfg.BackendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.BackendTimeout)
		defer cancel()
	}

	p.logf("generating with %s", p.backend.Name())
	start := time.Now()
	text, err := p.backend.Generate(ctx, req)
	if err != nil {
		var ue *backend.UnavailableError
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.As(err, &ue) {
			err = &backend.UnavailableError{
				Backend: p.backend.Name(),
				Detail:  fmt.Sprintf("timed out after %s", p.cfg.BackendTimeout),
				Err:     context.DeadlineExceeded,
			}
		}
		p.logf("generation failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	p.logf("generated %d bytes in %s", len(text), time.Since(start).Round(time.Millisecond))
	return text, nil
}

func (p *Pipeline) record(fn func(Recorder) error) {
	if p.recorder == nil {
		return
	}
	if err := fn(p.recorder); err != nil {
		p.logf("warning: record history: %v", err)
	}
}
