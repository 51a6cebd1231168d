package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/lucasnoah/compiletutor/internal/process"
)

// Language names a supported source language.
type Language string

const (
	LangC   Language = "C"
	LangCXX Language = "C++"
)

// languageByExt is the fixed extension table. Matching is exact.
var languageByExt = map[string]Language{
	".c":   LangC,
	".cpp": LangCXX,
	".cc":  LangCXX,
	".cxx": LangCXX,
}

// LanguageFor returns the language for a file extension (including the dot).
func LanguageFor(ext string) (Language, bool) {
	l, ok := languageByExt[ext]
	return l, ok
}

// Config holds the toolchain settings the stage needs.
type Config struct {
	CCompiler      string
	CXXCompiler    string
	BuildDir       string
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	OutputLimit    int
	// GOOS overrides runtime.GOOS when choosing the output binary name.
	GOOS string
}

// Stage compiles a source file and runs the produced binary.
type Stage struct {
	runner   process.Runner
	cfg      Config
	progress io.Writer
}

// NewStage creates a Stage. Empty compiler names default to gcc and g++.
func NewStage(runner process.Runner, cfg Config) *Stage {
	if cfg.CCompiler == "" {
		cfg.CCompiler = "gcc"
	}
	if cfg.CXXCompiler == "" {
		cfg.CXXCompiler = "g++"
	}
	return &Stage{runner: runner, cfg: cfg}
}

// SetProgress sets the writer for progress logging.
func (s *Stage) SetProgress(w io.Writer) {
	s.progress = w
}

func (s *Stage) logf(format string, args ...any) {
	if s.progress != nil {
		fmt.Fprintf(s.progress, format+"\n", args...)
	}
}

// CompilerFor returns the compiler command for a language.
func (s *Stage) CompilerFor(lang Language) string {
	if lang == LangC {
		return s.cfg.CCompiler
	}
	return s.cfg.CXXCompiler
}

// OutputBinary returns the path the compiler writes to and the run step executes.
func (s *Stage) OutputBinary() string {
	goos := s.cfg.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	name := "a.out"
	if goos == "windows" {
		name = "a.exe"
	}
	if s.cfg.BuildDir != "" {
		return filepath.Join(s.cfg.BuildDir, name)
	}
	if goos == "windows" {
		return name
	}
	return "./" + name
}

// CompileAndRun compiles filePath and, when compilation writes nothing to
// stderr, runs the produced binary. Exactly one Outcome is returned; process
// launch failures are folded into ExecFailed rather than returned as errors.
func (s *Stage) CompileAndRun(ctx context.Context, filePath string) Outcome {
	ext := filepath.Ext(filePath)
	lang, ok := LanguageFor(ext)
	if !ok {
		s.logf("unsupported extension %q for %s", ext, filePath)
		return Unsupported(ext)
	}

	compiler := s.CompilerFor(lang)
	binary := s.OutputBinary()
	// A binary left by an earlier analysis must never run for this file.
	if err := os.Remove(binary); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ExecFailed(fmt.Sprintf("remove old binary %s: %v", binary, err))
	}
	s.logf("compiling %s with %s -> %s", filePath, compiler, binary)

	compiled, err := s.runner.Run(ctx, compiler, []string{filePath, "-o", binary}, process.Options{
		Timeout:     s.cfg.CompileTimeout,
		OutputLimit: s.cfg.OutputLimit,
	})
	if err != nil {
		return ExecFailed(launchReason(err))
	}
	if compiled.TimedOut {
		return TimedOut("compile", s.cfg.CompileTimeout)
	}
	// Any stderr text counts as failure; warnings and errors are not told apart.
	if stderr := strings.TrimSpace(compiled.Stderr); stderr != "" {
		s.logf("compile produced %d bytes of stderr", len(stderr))
		return CompileFailed(stderr, ParseDiagnostics(stderr))
	}

	s.logf("running %s", binary)
	ran, err := s.runner.Run(ctx, binary, nil, process.Options{
		Timeout:     s.cfg.RunTimeout,
		OutputLimit: s.cfg.OutputLimit,
		MergeOutput: true,
	})
	if err != nil {
		return ExecFailed(launchReason(err))
	}
	if ran.TimedOut {
		return TimedOut("run", s.cfg.RunTimeout)
	}
	if text := strings.TrimSpace(ran.Stdout + ran.Stderr); text != "" {
		return RanWithOutput(text, ran.ExitCode)
	}
	return RanNoOutput(ran.ExitCode)
}

func launchReason(err error) string {
	var spawnErr *process.SpawnError
	if errors.As(err, &spawnErr) {
		return spawnErr.Error()
	}
	return err.Error()
}
