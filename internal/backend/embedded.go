package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultArtifacts are the files a local encoder/decoder model needs before it
// can be loaded, relative to the model directory.
var DefaultArtifacts = []string{
	"tokenizer.json",
	"config.json",
	filepath.Join("onnx", "encoder_model.onnx"),
	filepath.Join("onnx", "decoder_model_merged.onnx"),
}

// Artifacts are the verified absolute paths handed to a Runtime.
type Artifacts struct {
	Dir       string
	Tokenizer string
	Config    string
	Files     []string
}

// Pipeline is a loaded, resident generation pipeline.
type Pipeline interface {
	Generate(ctx context.Context, input string, opts Options) (string, error)
}

// Runtime loads a Pipeline from verified model artifacts.
type Runtime interface {
	Load(ctx context.Context, a Artifacts) (Pipeline, error)
}

// EmbeddedConfig configures the in-process model.
type EmbeddedConfig struct {
	// ModelDir overrides DefaultModelDir when set.
	ModelDir        string
	DefaultModelDir string
	// Required overrides DefaultArtifacts when non-empty.
	Required []string
}

// Embedded keeps one generation pipeline resident for the process lifetime.
// The pipeline is loaded lazily on first use; concurrent first calls share a
// single load, and a failed load is not cached.
type Embedded struct {
	cfg     EmbeddedConfig
	runtime Runtime

	group singleflight.Group
	mu    sync.RWMutex
	pipe  Pipeline
}

// NewEmbedded creates an in-process backend. Nothing is loaded until Generate.
func NewEmbedded(rt Runtime, cfg EmbeddedConfig) *Embedded {
	return &Embedded{cfg: cfg, runtime: rt}
}

func (e *Embedded) Name() string { return "embedded:" + filepath.Base(e.ModelDir()) }

// ModelDir resolves the model directory: the explicit override, else the bundled default.
func (e *Embedded) ModelDir() string {
	if e.cfg.ModelDir != "" {
		return e.cfg.ModelDir
	}
	return e.cfg.DefaultModelDir
}

// Loaded reports whether the pipeline is resident.
func (e *Embedded) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pipe != nil
}

// Generate loads the pipeline if needed and runs one generation.
func (e *Embedded) Generate(ctx context.Context, req Request) (string, error) {
	pipe, err := e.load(ctx)
	if err != nil {
		return "", err
	}
	text, err := pipe.Generate(ctx, transcript(req), req.Options)
	if err != nil {
		return "", unavailable(e.Name(), err)
	}
	return text, nil
}

func (e *Embedded) load(ctx context.Context) (Pipeline, error) {
	e.mu.RLock()
	pipe := e.pipe
	e.mu.RUnlock()
	if pipe != nil {
		return pipe, nil
	}

	// The load is shared, so it must not die with the first caller's context.
	// Each caller still stops waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan("load", func() (any, error) {
		e.mu.RLock()
		p := e.pipe
		e.mu.RUnlock()
		if p != nil {
			return p, nil
		}

		arts, err := e.verify()
		if err != nil {
			return nil, err
		}
		p, err = e.runtime.Load(loadCtx, arts)
		if err != nil {
			return nil, unavailable(e.Name(), fmt.Errorf("load model: %w", err))
		}

		e.mu.Lock()
		e.pipe = p
		e.mu.Unlock()
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Pipeline), nil
	}
}

// verify checks each required artifact individually so the error names the
// first missing file.
func (e *Embedded) verify() (Artifacts, error) {
	dir := e.ModelDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Artifacts{}, &ModelNotFoundError{Path: dir}
	}

	required := e.cfg.Required
	if len(required) == 0 {
		required = DefaultArtifacts
	}
	arts := Artifacts{Dir: dir}
	for _, rel := range required {
		path := filepath.Join(dir, rel)
		if _, err := os.Stat(path); err != nil {
			return Artifacts{}, &ModelNotFoundError{Path: path}
		}
		switch filepath.Base(rel) {
		case "tokenizer.json":
			arts.Tokenizer = path
		case "config.json":
			arts.Config = path
		}
		arts.Files = append(arts.Files, path)
	}
	return arts, nil
}
