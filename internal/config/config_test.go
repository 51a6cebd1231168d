package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `
backend:
  kind: subprocess
  timeout: "45s"
  subprocess:
    runtime: python3.11
    script: /opt/tutor/infer.py
    model_dir: /opt/tutor/model
generation:
  max_new_tokens: 256
  temperature: 0.7
  repetition_penalty: 1.5
toolchain:
  c_compiler: clang
  compile_timeout: "1m"
  output_limit: 4096
history:
  dsn: postgres://tutor@localhost/tutor
prompt:
  structured: true
server:
  port: 9000
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tutor.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Backend.Kind != KindSubprocess {
		t.Errorf("Kind = %q", cfg.Backend.Kind)
	}
	if cfg.Backend.Subprocess.Runtime != "python3.11" || cfg.Backend.Subprocess.ModelDir != "/opt/tutor/model" {
		t.Errorf("Subprocess = %+v", cfg.Backend.Subprocess)
	}
	if cfg.Generation.MaxNewTokens != 256 || *cfg.Generation.Temperature != 0.7 || *cfg.Generation.RepetitionPenalty != 1.5 {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if cfg.Toolchain.CCompiler != "clang" || cfg.Toolchain.CXXCompiler != "g++" {
		t.Errorf("compilers = %q, %q", cfg.Toolchain.CCompiler, cfg.Toolchain.CXXCompiler)
	}
	if cfg.Toolchain.OutputLimit != 4096 {
		t.Errorf("OutputLimit = %d", cfg.Toolchain.OutputLimit)
	}
	if cfg.History.DSN != "postgres://tutor@localhost/tutor" || !cfg.Prompt.Structured || cfg.Server.Port != 9000 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	d, err := cfg.BackendTimeout()
	if err != nil || d != 45*time.Second {
		t.Errorf("BackendTimeout() = %v, %v", d, err)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("expected valid config, got %v", errs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTestConfig(t, "backend: [unclosed")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parsing config YAML") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := Default()

	if cfg.Backend.Kind != KindRemote || cfg.Backend.Remote.Provider != ProviderGemini {
		t.Errorf("backend defaults = %+v", cfg.Backend)
	}
	if cfg.Backend.Remote.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("APIKeyEnv = %q", cfg.Backend.Remote.APIKeyEnv)
	}
	if cfg.Generation.MaxNewTokens != DefaultMaxNewTokens || *cfg.Generation.Temperature != DefaultTemperature {
		t.Errorf("generation defaults = %+v", cfg.Generation)
	}
	if cfg.Toolchain.OutputLimit != DefaultOutputLimit {
		t.Errorf("OutputLimit = %d", cfg.Toolchain.OutputLimit)
	}
	if !strings.HasSuffix(cfg.Backend.Embedded.DefaultModelDir, filepath.Join(".tutor", "model")) {
		t.Errorf("DefaultModelDir = %q", cfg.Backend.Embedded.DefaultModelDir)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("defaults should validate, got %v", errs)
	}
}

func TestDefaults_GroqKeyEnv(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, "backend:\n  remote:\n    provider: groq\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Remote.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("APIKeyEnv = %q", cfg.Backend.Remote.APIKeyEnv)
	}
}

func TestExplicitZeroTemperatureIsKept(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, "generation:\n  temperature: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.Temperature == nil || *cfg.Generation.Temperature != 0 {
		t.Errorf("temperature = %v", cfg.Generation.Temperature)
	}
}

func TestLoadDefault_SearchOrder(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd := t.TempDir()
	orig, _ := os.Getwd()
	if err := os.Chdir(wd); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("expected defaults with no file, got %q", cfg.Path)
	}

	userDir := filepath.Join(home, ".tutor")
	os.MkdirAll(userDir, 0o755)
	os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte("server:\n  port: 7000\n"), 0o644)
	cfg, err = LoadDefault()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("expected user config, got port %d", cfg.Server.Port)
	}

	os.WriteFile(filepath.Join(wd, "tutor.yaml"), []byte("server:\n  port: 7100\n"), 0o644)
	cfg, err = LoadDefault()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("project config should win, got port %d", cfg.Server.Port)
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("TUTOR_TEST_KEY", "  from-env  ")
	cfg := Default()
	cfg.Backend.Remote.APIKeyEnv = "TUTOR_TEST_KEY"

	if got := cfg.APIKey(); got != "from-env" {
		t.Errorf("APIKey() = %q", got)
	}
	cfg.Backend.Remote.APIKey = "literal"
	if got := cfg.APIKey(); got != "literal" {
		t.Errorf("literal key should win, got %q", got)
	}
	cfg.Backend.Remote.APIKey = ""
	cfg.Backend.Remote.APIKeyEnv = "TUTOR_TEST_UNSET"
	if got := cfg.APIKey(); got != "" {
		t.Errorf("expected empty key, got %q", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("TUTOR_ENV_A=one\nTUTOR_ENV_B=two\n"), 0o644)
	t.Setenv("TUTOR_ENV_B", "already")
	os.Unsetenv("TUTOR_ENV_A")
	t.Cleanup(func() { os.Unsetenv("TUTOR_ENV_A") })

	if err := LoadEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv() error: %v", err)
	}
	if got := os.Getenv("TUTOR_ENV_A"); got != "one" {
		t.Errorf("TUTOR_ENV_A = %q", got)
	}
	if got := os.Getenv("TUTOR_ENV_B"); got != "already" {
		t.Errorf("existing variables must not be overridden, got %q", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"90s", 90 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"soon", 0, true},
		{"-5s", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad kind", func(c *Config) { c.Backend.Kind = "cloud" }, "backend.kind"},
		{"bad provider", func(c *Config) { c.Backend.Remote.Provider = "openai" }, "backend.remote.provider"},
		{"missing script", func(c *Config) { c.Backend.Kind = KindSubprocess; c.Backend.Subprocess.Script = "" }, "backend.subprocess.script"},
		{"embedded without dir", func(c *Config) {
			c.Backend.Kind = KindEmbedded
			c.Backend.Embedded.ModelDir = ""
			c.Backend.Embedded.DefaultModelDir = ""
		}, "backend.embedded.model_dir"},
		{"bad timeout", func(c *Config) { c.Backend.Timeout = "forever" }, "backend.timeout"},
		{"bad run timeout", func(c *Config) { c.Toolchain.RunTimeout = "1 minute" }, "toolchain.run_timeout"},
		{"hot temperature", func(c *Config) { v := 1.5; c.Generation.Temperature = &v }, "generation.temperature"},
		{"negative temperature", func(c *Config) { v := -0.1; c.Generation.Temperature = &v }, "generation.temperature"},
		{"low penalty", func(c *Config) { v := 0.9; c.Generation.RepetitionPenalty = &v }, "generation.repetition_penalty"},
		{"negative tokens", func(c *Config) { c.Generation.MaxNewTokens = -1 }, "generation.max_new_tokens"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := Validate(cfg)
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %v", errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidate_BoundaryValues(t *testing.T) {
	cfg := Default()
	zero, one := 0.0, 1.0
	cfg.Generation.Temperature = &one
	cfg.Generation.RepetitionPenalty = &one
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("boundaries should be valid, got %v", errs)
	}
	cfg.Generation.Temperature = &zero
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("zero temperature should be valid, got %v", errs)
	}
}
