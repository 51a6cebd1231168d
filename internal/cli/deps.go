package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/compiletutor/internal/backend"
	"github.com/lucasnoah/compiletutor/internal/config"
	"github.com/lucasnoah/compiletutor/internal/db"
	"github.com/lucasnoah/compiletutor/internal/diagnosis"
	"github.com/lucasnoah/compiletutor/internal/process"
	"github.com/lucasnoah/compiletutor/internal/prompt"
	"github.com/lucasnoah/compiletutor/internal/toolchain"
)

// loadConfig loads .env, then the config file, and applies --backend.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if backendKindArg != "" {
		cfg.Backend.Kind = backendKindArg
	}
	return cfg, nil
}

// loadValidConfig loads the config and fails on the first validation error.
func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s (run 'tutor config validate' for all errors)", errs[0])
	}
	return cfg, nil
}

func progressWriter(cmd *cobra.Command) io.Writer {
	if verbose {
		return cmd.ErrOrStderr()
	}
	return nil
}

// newBackend builds the configured backend. Credentials and model paths are
// resolved here, once.
func newBackend(ctx context.Context, cfg *config.Config, runner process.Runner, progress io.Writer) (backend.Backend, error) {
	timeout, err := cfg.BackendTimeout()
	if err != nil {
		return nil, fmt.Errorf("backend.timeout: %w", err)
	}

	b := cfg.Backend
	switch b.Kind {
	case config.KindRemote:
		switch b.Remote.Provider {
		case config.ProviderGroq:
			return backend.NewChat(backend.ChatConfig{
				APIKey:  cfg.APIKey(),
				Model:   b.Remote.Model,
				BaseURL: b.Remote.BaseURL,
			}), nil
		default:
			return backend.NewGemini(ctx, backend.GeminiConfig{
				APIKey:  cfg.APIKey(),
				Model:   b.Remote.Model,
				BaseURL: b.Remote.BaseURL,
			})
		}
	case config.KindSubprocess:
		s := backend.NewSubprocess(runner, backend.SubprocessConfig{
			Runtime:  b.Subprocess.Runtime,
			Script:   b.Subprocess.Script,
			ModelDir: b.Subprocess.ModelDir,
			Timeout:  timeout,
		})
		s.SetProgress(progress)
		return s, nil
	case config.KindEmbedded:
		return backend.NewEmbedded(backend.ExemplarRuntime{CacheSize: b.Embedded.CacheSize}, backend.EmbeddedConfig{
			ModelDir:        b.Embedded.ModelDir,
			DefaultModelDir: b.Embedded.DefaultModelDir,
		}), nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", b.Kind)
}

// newStage builds the compile/run stage from the toolchain config.
func newStage(cfg *config.Config, runner process.Runner, progress io.Writer) (*toolchain.Stage, error) {
	tc := cfg.Toolchain
	compileTimeout, err := config.ParseDuration(tc.CompileTimeout)
	if err != nil {
		return nil, fmt.Errorf("toolchain.compile_timeout: %w", err)
	}
	runTimeout, err := config.ParseDuration(tc.RunTimeout)
	if err != nil {
		return nil, fmt.Errorf("toolchain.run_timeout: %w", err)
	}
	stage := toolchain.NewStage(runner, toolchain.Config{
		CCompiler:      tc.CCompiler,
		CXXCompiler:    tc.CXXCompiler,
		BuildDir:       tc.BuildDir,
		CompileTimeout: compileTimeout,
		RunTimeout:     runTimeout,
		OutputLimit:    tc.OutputLimit,
	})
	stage.SetProgress(progress)
	return stage, nil
}

// openHistory opens and migrates the history DB. It returns nil, and a no-op
// cleanup, when history is disabled.
func openHistory(cfg *config.Config) (*db.DB, func(), error) {
	if cfg.History.Disabled {
		return nil, func() {}, nil
	}
	dsn := cfg.History.DSN
	if dsn == "" {
		path, err := db.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
		dsn = path
	}
	d, err := db.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

// newPipeline wires config, toolchain, prompt builder, backend and history
// into a diagnosis pipeline.
func newPipeline(cmd *cobra.Command, cfg *config.Config) (*diagnosis.Pipeline, *db.DB, func(), error) {
	progress := progressWriter(cmd)
	runner := &process.ExecRunner{}

	stage, err := newStage(cfg, runner, progress)
	if err != nil {
		return nil, nil, nil, err
	}

	workdir := cfg.Prompt.TemplateDir
	if workdir == "" {
		workdir, _ = os.Getwd()
	}
	builder, err := prompt.LoadBuilder(workdir, cfg.Prompt.Structured)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load templates: %w", err)
	}

	be, err := newBackend(cmd.Context(), cfg, runner, progress)
	if err != nil {
		return nil, nil, nil, err
	}
	timeout, _ := cfg.BackendTimeout()

	p := diagnosis.New(stage, builder, be, diagnosis.Config{
		Options: backend.Options{
			MaxNewTokens:      cfg.Generation.MaxNewTokens,
			Temperature:       cfg.Generation.Temperature,
			RepetitionPenalty: cfg.Generation.RepetitionPenalty,
		},
		BackendTimeout: timeout,
	})
	p.SetProgress(progress)

	history, cleanup, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: history disabled: %v\n", err)
		history, cleanup = nil, func() {}
	}
	if history != nil {
		p.SetRecorder(history)
	}
	return p, history, cleanup, nil
}
