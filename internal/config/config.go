package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ReviewerMode selects which judgment capability the pipeline uses.
type ReviewerMode string

const (
	// ReviewerStub is the deterministic offline reviewer.
	ReviewerStub ReviewerMode = "stub"
	// ReviewerLive forwards prompts to an external LLM endpoint.
	ReviewerLive ReviewerMode = "live"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Reviewer  ReviewerConfig  `mapstructure:"reviewer" yaml:"reviewer"`
	Policy    PolicyConfig    `mapstructure:"policy" yaml:"policy"`

	// Audit gets its marching orders from CLI flags, not the config file.
	Audit AuditConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the connection details for the optional run store.
// An empty URL disables persistence and prior-verdict retrieval.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// PipelineConfig tunes the candidate review pipeline.
type PipelineConfig struct {
	WorkerConcurrency int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	ReviewTimeout     time.Duration `mapstructure:"review_timeout" yaml:"review_timeout"`
	SkipBestPractice  bool          `mapstructure:"skip_best_practice" yaml:"skip_best_practice"`
	IncludePasses     bool          `mapstructure:"include_passes" yaml:"include_passes"`
}

// RetrievalConfig tunes the context retriever.
type RetrievalConfig struct {
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PriorVerdicts     bool          `mapstructure:"prior_verdicts" yaml:"prior_verdicts"`
	PriorVerdictLimit int           `mapstructure:"prior_verdict_limit" yaml:"prior_verdict_limit"`
}

// ReviewerConfig defines the judgment capability and, for the live variant,
// its endpoint and credentials.
type ReviewerConfig struct {
	Mode        ReviewerMode  `mapstructure:"mode" yaml:"mode"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RateLimit caps outbound review calls per second. Zero disables the cap.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// PolicyConfig locates the rule policy table. An empty path selects the
// embedded default table.
type PolicyConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AuditConfig holds settings populated from CLI flags for a specific audit run.
type AuditConfig struct {
	Input      string
	PageURL    string
	Output     string
	Format     string
	PromptsDir string
	Persist    bool
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "a11yscope")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Pipeline --
	v.SetDefault("pipeline.worker_concurrency", 4)
	v.SetDefault("pipeline.review_timeout", "60s")
	v.SetDefault("pipeline.skip_best_practice", false)
	v.SetDefault("pipeline.include_passes", false)

	// -- Retrieval --
	v.SetDefault("retrieval.top_k", 4)
	v.SetDefault("retrieval.timeout", "5s")
	v.SetDefault("retrieval.prior_verdicts", false)
	v.SetDefault("retrieval.prior_verdict_limit", 3)

	// -- Reviewer --
	v.SetDefault("reviewer.mode", "stub")
	v.SetDefault("reviewer.model", "gemini-2.5-flash")
	v.SetDefault("reviewer.api_timeout", "45s")
	v.SetDefault("reviewer.temperature", 0.0)
	v.SetDefault("reviewer.max_tokens", 1024)
	v.SetDefault("reviewer.rate_limit", 2.0)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	_ = v.BindEnv("reviewer.api_key", "A11YSCOPE_REVIEWER_API_KEY")
	_ = v.BindEnv("database.url", "A11YSCOPE_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// Configuration errors are the only run-fatal error class.
func (c *Config) Validate() error {
	if c.Pipeline.WorkerConcurrency <= 0 {
		return fmt.Errorf("pipeline.worker_concurrency must be a positive integer")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be a positive integer")
	}
	switch c.Reviewer.Mode {
	case ReviewerStub:
	case ReviewerLive:
		if c.Reviewer.APIKey == "" {
			return fmt.Errorf("reviewer.api_key is required for live mode (A11YSCOPE_REVIEWER_API_KEY)")
		}
		if c.Reviewer.Model == "" {
			return fmt.Errorf("reviewer.model is required for live mode")
		}
	default:
		return fmt.Errorf("reviewer.mode must be %q or %q, got %q",
			ReviewerStub, ReviewerLive, c.Reviewer.Mode)
	}
	if c.Reviewer.Temperature < 0 || c.Reviewer.Temperature > 2 {
		return fmt.Errorf("reviewer.temperature must be within [0, 2]")
	}
	return nil
}

// EnvKeyReplacer is the replacer used to map config keys onto A11YSCOPE_*
// environment variables (dots become underscores).
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
