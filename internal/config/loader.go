package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend kinds and remote providers.
const (
	KindRemote     = "remote"
	KindSubprocess = "subprocess"
	KindEmbedded   = "embedded"

	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Defaults applied to unset fields.
const (
	DefaultMaxNewTokens      = 512
	DefaultTemperature       = 0.3
	DefaultRepetitionPenalty = 1.2
	DefaultBackendTimeout    = "120s"
	DefaultCompileTimeout    = "30s"
	DefaultRunTimeout        = "10s"
	DefaultOutputLimit       = 1 << 20
	DefaultPort              = 8080
	DefaultCacheSize         = 256
)

// Load reads and parses a configuration from the given YAML file path and
// fills unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	cfg.Path = path

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault loads the first config found in the standard locations:
// ./tutor.yaml, then ~/.tutor/config.yaml. With neither present it returns
// the defaults.
func LoadDefault() (*Config, error) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// SearchPaths returns the locations LoadDefault checks, in order.
func SearchPaths() []string {
	candidates := []string{"tutor.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".tutor", "config.yaml"))
	}
	return candidates
}

// Default returns a config with every field defaulted.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// APIKey resolves the remote credential: the literal api_key, else the
// environment variable named by api_key_env. It is called once at startup.
func (c *Config) APIKey() string {
	r := c.Backend.Remote
	if key := strings.TrimSpace(r.APIKey); key != "" {
		return key
	}
	if r.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(r.APIKeyEnv))
}

// BackendTimeout parses backend.timeout.
func (c *Config) BackendTimeout() (time.Duration, error) {
	return ParseDuration(c.Backend.Timeout)
}

// ParseDuration parses a Go duration string. Empty and "0" mean no deadline.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d, nil
}

func defaultKeyEnv(provider string) string {
	switch provider {
	case ProviderGroq:
		return "GROQ_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// applyDefaults fills every unset field.
func applyDefaults(cfg *Config) {
	b := &cfg.Backend
	if b.Kind == "" {
		b.Kind = KindRemote
	}
	if b.Timeout == "" {
		b.Timeout = DefaultBackendTimeout
	}
	if b.Remote.Provider == "" {
		b.Remote.Provider = ProviderGemini
	}
	if b.Remote.APIKeyEnv == "" {
		b.Remote.APIKeyEnv = defaultKeyEnv(b.Remote.Provider)
	}
	if b.Subprocess.Runtime == "" {
		b.Subprocess.Runtime = "python3"
	}
	if b.Subprocess.Script == "" {
		b.Subprocess.Script = "infer.py"
	}
	if b.Embedded.DefaultModelDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			b.Embedded.DefaultModelDir = filepath.Join(home, ".tutor", "model")
		}
	}
	if b.Embedded.CacheSize == 0 {
		b.Embedded.CacheSize = DefaultCacheSize
	}
	if b.Subprocess.ModelDir == "" {
		b.Subprocess.ModelDir = b.Embedded.DefaultModelDir
	}

	g := &cfg.Generation
	if g.MaxNewTokens == 0 {
		g.MaxNewTokens = DefaultMaxNewTokens
	}
	if g.Temperature == nil {
		t := DefaultTemperature
		g.Temperature = &t
	}
	if g.RepetitionPenalty == nil {
		p := DefaultRepetitionPenalty
		g.RepetitionPenalty = &p
	}

	tc := &cfg.Toolchain
	if tc.CCompiler == "" {
		tc.CCompiler = "gcc"
	}
	if tc.CXXCompiler == "" {
		tc.CXXCompiler = "g++"
	}
	if tc.CompileTimeout == "" {
		tc.CompileTimeout = DefaultCompileTimeout
	}
	if tc.RunTimeout == "" {
		tc.RunTimeout = DefaultRunTimeout
	}
	if tc.OutputLimit == 0 {
		tc.OutputLimit = DefaultOutputLimit
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
}
