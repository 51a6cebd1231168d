package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucasnoah/compiletutor/internal/prompt"
	"github.com/lucasnoah/compiletutor/internal/session"
)

type echoPipeline struct {
	seen Options
}

func (p *echoPipeline) Generate(_ context.Context, input string, opts Options) (string, error) {
	p.seen = opts
	return "echo: " + input, nil
}

type countingRuntime struct {
	loads atomic.Int32
	delay time.Duration
	pipe  *echoPipeline
}

func (r *countingRuntime) Load(_ context.Context, _ Artifacts) (Pipeline, error) {
	r.loads.Add(1)
	time.Sleep(r.delay)
	return r.pipe, nil
}

func writeModel(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func fullModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeModel(t, dir, map[string]string{
		"tokenizer.json":                 `{"model":{"type":"Unigram","vocab":[["▁The",-1.0],["▁semicolon",-2.0]]}}`,
		"config.json":                    `{"max_length":512}`,
		"onnx/encoder_model.onnx":        "enc",
		"onnx/decoder_model_merged.onnx": "dec",
	})
	return dir
}

func TestEmbedded_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "model")
	e := NewEmbedded(&countingRuntime{pipe: &echoPipeline{}}, EmbeddedConfig{DefaultModelDir: missing})
	_, err := e.Generate(context.Background(), Request{Prompt: "x"})
	var mnf *ModelNotFoundError
	if !errors.As(err, &mnf) || mnf.Path != missing {
		t.Fatalf("expected ModelNotFoundError(%s), got %v", missing, err)
	}
}

func TestEmbedded_MissingTokenizerThenRecovers(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, map[string]string{
		"config.json":                    `{}`,
		"onnx/encoder_model.onnx":        "enc",
		"onnx/decoder_model_merged.onnx": "dec",
	})
	rt := &countingRuntime{pipe: &echoPipeline{}}
	e := NewEmbedded(rt, EmbeddedConfig{ModelDir: dir, DefaultModelDir: "/unused"})

	_, err := e.Generate(context.Background(), Request{Prompt: "x"})
	var mnf *ModelNotFoundError
	if !errors.As(err, &mnf) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
	if mnf.Path != filepath.Join(dir, "tokenizer.json") {
		t.Errorf("error path = %q", mnf.Path)
	}
	if e.Loaded() {
		t.Error("failed load must not be cached")
	}

	writeModel(t, dir, map[string]string{"tokenizer.json": `{"model":{"vocab":{}}}`})
	text, err := e.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if text != "echo: x" {
		t.Errorf("got %q", text)
	}
	if !e.Loaded() {
		t.Error("expected pipeline to be resident")
	}
}

func TestEmbedded_ConcurrentFirstCallsLoadOnce(t *testing.T) {
	rt := &countingRuntime{pipe: &echoPipeline{}, delay: 50 * time.Millisecond}
	e := NewEmbedded(rt, EmbeddedConfig{DefaultModelDir: fullModel(t)})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Generate(context.Background(), Request{Prompt: "x"}); err != nil {
				t.Errorf("generate: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := rt.loads.Load(); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}
	if _, err := e.Generate(context.Background(), Request{Prompt: "y"}); err != nil {
		t.Fatal(err)
	}
	if n := rt.loads.Load(); n != 1 {
		t.Errorf("later calls must reuse the pipeline, loads = %d", n)
	}
}

// slowRuntime blocks in Load until release is closed or its context ends.
type slowRuntime struct {
	loads   atomic.Int32
	started chan struct{}
	release chan struct{}
	pipe    *echoPipeline
}

func (r *slowRuntime) Load(ctx context.Context, _ Artifacts) (Pipeline, error) {
	r.loads.Add(1)
	close(r.started)
	select {
	case <-r.release:
		return r.pipe, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestEmbedded_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	rt := &slowRuntime{started: make(chan struct{}), release: make(chan struct{}), pipe: &echoPipeline{}}
	e := NewEmbedded(rt, EmbeddedConfig{DefaultModelDir: fullModel(t)})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := e.Generate(ctxA, Request{Prompt: "a"})
		errA <- err
	}()
	<-rt.started

	errB := make(chan error, 1)
	go func() {
		_, err := e.Generate(context.Background(), Request{Prompt: "b"})
		errB <- err
	}()

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: err = %v, want context.Canceled", err)
	}

	close(rt.release)
	if err := <-errB; err != nil {
		t.Fatalf("caller with a live context failed: %v", err)
	}
	if !e.Loaded() {
		t.Error("pipeline should be resident after the shared load")
	}
	if n := rt.loads.Load(); n != 1 {
		t.Errorf("expected 1 load, got %d", n)
	}
}

func TestEmbedded_ModelDirOverride(t *testing.T) {
	e := NewEmbedded(&countingRuntime{}, EmbeddedConfig{ModelDir: "/a/custom", DefaultModelDir: "/b/bundled"})
	if e.ModelDir() != "/a/custom" {
		t.Errorf("got %q", e.ModelDir())
	}
	e = NewEmbedded(&countingRuntime{}, EmbeddedConfig{DefaultModelDir: "/b/bundled"})
	if e.ModelDir() != "/b/bundled" {
		t.Errorf("got %q", e.ModelDir())
	}
}

func TestExemplarRuntime_AnswersFromCatalog(t *testing.T) {
	e := NewEmbedded(ExemplarRuntime{}, EmbeddedConfig{DefaultModelDir: fullModel(t)})

	text, err := e.Generate(context.Background(), Request{Prompt: "Compilation failed:\nmain.c:3:5: error: expected ';' before '}' token"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(text, "Every statement in C/C++ must end with a semicolon.") {
		t.Errorf("expected catalog rule, got %q", text)
	}
	if strings.Contains(text, "int x = 10;") {
		t.Error("answer must not contain the corrected code")
	}

	text, err = e.Generate(context.Background(), Request{Prompt: "Program output:\nHi\n" + prompt.NoErrorMarker})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(text, "without errors") {
		t.Errorf("expected success explanation, got %q", text)
	}
}

func TestExemplarRuntime_FollowUpAnswersLatestQuestion(t *testing.T) {
	e := NewEmbedded(ExemplarRuntime{}, EmbeddedConfig{DefaultModelDir: fullModel(t)})
	first := session.Turn{Role: session.RoleAssistant, Seq: 1,
		Content: "Error Overview: error: expected ';' before '}' token\nRule to Remember: Every statement in C/C++ must end with a semicolon."}

	text, err := e.Generate(context.Background(), Request{
		System: "Compilation failed:\nmain.c:3:5: error: expected ';' before '}' token",
		PriorTurns: []session.Turn{first,
			{Role: session.RoleUser, Seq: 2, Content: "and what about error: 'cout' was not declared in this scope?"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(text, "Standard library features require proper headers.") {
		t.Errorf("expected the cout entry for the question, got %q", text)
	}
	if strings.Contains(text, "must end with a semicolon") {
		t.Errorf("answer repeats the first analysis: %q", text)
	}

	text, err = e.Generate(context.Background(), Request{
		PriorTurns: []session.Turn{first, {Role: session.RoleUser, Seq: 2, Content: "why is that line wrong?"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(text, `You asked: "why is that line wrong?"`) || strings.Contains(text, "semicolon") {
		t.Errorf("unexpected answer to a general question: %q", text)
	}
}

func TestExemplarRuntime_MaxNewTokens(t *testing.T) {
	e := NewEmbedded(ExemplarRuntime{}, EmbeddedConfig{DefaultModelDir: fullModel(t)})
	temp, pen := 0.9, 1.3
	text, err := e.Generate(context.Background(), Request{
		Prompt:  prompt.NoErrorMarker,
		Options: Options{MaxNewTokens: 3, Temperature: &temp, RepetitionPenalty: &pen},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// "Your" and "program" are not in the vocab and cost one token per rune.
	if text != "" {
		t.Errorf("expected empty truncated output, got %q", text)
	}

	text, err = e.Generate(context.Background(), Request{Prompt: prompt.NoErrorMarker, Options: Options{MaxNewTokens: 12}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Your program" {
		t.Errorf("got %q", text)
	}
}

func TestLoadVocab_MapForm(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, map[string]string{"tokenizer.json": `{"model":{"type":"BPE","vocab":{"int":1,"main":2}}}`})
	vocab, err := loadVocab(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := vocab["main"]; !ok || len(vocab) != 2 {
		t.Errorf("vocab = %v", vocab)
	}
}
