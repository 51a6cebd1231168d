package config

// Config is the top-level configuration parsed from tutor YAML.
type Config struct {
	Backend    Backend    `yaml:"backend"`
	Generation Generation `yaml:"generation"`
	Toolchain  Toolchain  `yaml:"toolchain"`
	History    History    `yaml:"history"`
	Prompt     Prompt     `yaml:"prompt"`
	Server     Server     `yaml:"server"`

	// Path is the file the config was read from; empty when only defaults apply.
	Path string `yaml:"-"`
}

// Backend selects and configures the text-generation backend.
type Backend struct {
	// Kind is one of remote, subprocess or embedded.
	Kind string `yaml:"kind"`
	// Timeout bounds each backend call, e.g. "90s". Empty or "0" disables it.
	Timeout    string     `yaml:"timeout"`
	Remote     Remote     `yaml:"remote"`
	Subprocess Subprocess `yaml:"subprocess"`
	Embedded   Embedded   `yaml:"embedded"`
}

// Remote configures a hosted API.
type Remote struct {
	// Provider is gemini or groq.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	// APIKeyEnv names the environment variable read when APIKey is empty.
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// Subprocess configures a model served by an external inference script.
type Subprocess struct {
	Runtime  string `yaml:"runtime"`
	Script   string `yaml:"script"`
	ModelDir string `yaml:"model_dir"`
}

// Embedded configures the in-process model.
type Embedded struct {
	ModelDir        string `yaml:"model_dir"`
	DefaultModelDir string `yaml:"default_model_dir"`
	CacheSize       int    `yaml:"cache_size"`
}

// Generation holds the knobs passed to every backend call.
type Generation struct {
	MaxNewTokens      int      `yaml:"max_new_tokens"`
	Temperature       *float64 `yaml:"temperature"`
	RepetitionPenalty *float64 `yaml:"repetition_penalty"`
}

// Toolchain configures the compile and run steps.
type Toolchain struct {
	CCompiler      string `yaml:"c_compiler"`
	CXXCompiler    string `yaml:"cxx_compiler"`
	BuildDir       string `yaml:"build_dir"`
	CompileTimeout string `yaml:"compile_timeout"`
	RunTimeout     string `yaml:"run_timeout"`
	// OutputLimit caps each captured stream in bytes; negative disables the cap.
	OutputLimit int `yaml:"output_limit"`
}

// History configures the analysis history database.
type History struct {
	// DSN is a SQLite path or a postgres:// URL. Empty means ~/.tutor/history.db.
	DSN      string `yaml:"dsn"`
	Disabled bool   `yaml:"disabled"`
}

// Prompt configures prompt rendering.
type Prompt struct {
	// TemplateDir is searched for templates/<name> overrides.
	TemplateDir string `yaml:"template_dir"`
	Structured  bool   `yaml:"structured"`
}

// Server configures tutor serve.
type Server struct {
	Port int `yaml:"port"`
}
