package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedKinds = map[string]bool{
	KindRemote:     true,
	KindSubprocess: true,
	KindEmbedded:   true,
}

var recognizedProviders = map[string]bool{
	ProviderGemini: true,
	ProviderGroq:   true,
}

// Validate checks a Config for semantic errors. It returns every problem
// found (empty if valid). Missing credentials are not an error here; the
// backend reports them on first use.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	b := cfg.Backend

	if !recognizedKinds[b.Kind] {
		errs = append(errs, ValidationError{
			Field:   "backend.kind",
			Message: fmt.Sprintf("unrecognized backend kind %q (want remote, subprocess or embedded)", b.Kind),
		})
	}
	if b.Kind == KindRemote && !recognizedProviders[b.Remote.Provider] {
		errs = append(errs, ValidationError{
			Field:   "backend.remote.provider",
			Message: fmt.Sprintf("unrecognized provider %q", b.Remote.Provider),
		})
	}
	if b.Kind == KindSubprocess && b.Subprocess.Script == "" {
		errs = append(errs, ValidationError{Field: "backend.subprocess.script", Message: "is required"})
	}
	if b.Kind == KindEmbedded && b.Embedded.ModelDir == "" && b.Embedded.DefaultModelDir == "" {
		errs = append(errs, ValidationError{Field: "backend.embedded.model_dir", Message: "is required when no default model directory is available"})
	}
	if b.Embedded.CacheSize < 0 {
		errs = append(errs, ValidationError{Field: "backend.embedded.cache_size", Message: "must not be negative"})
	}

	for _, d := range []struct {
		field string
		value string
	}{
		{"backend.timeout", b.Timeout},
		{"toolchain.compile_timeout", cfg.Toolchain.CompileTimeout},
		{"toolchain.run_timeout", cfg.Toolchain.RunTimeout},
	} {
		if _, err := ParseDuration(d.value); err != nil {
			errs = append(errs, ValidationError{Field: d.field, Message: fmt.Sprintf("invalid duration %q", d.value)})
		}
	}

	g := cfg.Generation
	if g.MaxNewTokens < 0 {
		errs = append(errs, ValidationError{Field: "generation.max_new_tokens", Message: "must not be negative"})
	}
	if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 1) {
		errs = append(errs, ValidationError{Field: "generation.temperature", Message: fmt.Sprintf("%.2f is outside [0, 1]", *g.Temperature)})
	}
	if g.RepetitionPenalty != nil && *g.RepetitionPenalty < 1 {
		errs = append(errs, ValidationError{Field: "generation.repetition_penalty", Message: fmt.Sprintf("%.2f is below 1", *g.RepetitionPenalty)})
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Message: fmt.Sprintf("%d is not a valid port", cfg.Server.Port)})
	}

	return errs
}
