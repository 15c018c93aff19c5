package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research pipeline and its outer surfaces.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Output    OutputConfig    `mapstructure:"output"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// LLMConfig configures the completion service and the model used by each stage.
type LLMConfig struct {
	APIKey      string            `mapstructure:"api_key"`
	BaseURL     string            `mapstructure:"base_url"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Planner     PlannerConfig     `mapstructure:"planner"`
	Splitter    StageModel        `mapstructure:"splitter"`
	Worker      WorkerModel       `mapstructure:"worker"`
	Synthesizer SynthesizerConfig `mapstructure:"synthesizer"`
}

// StageModel names the model a single-call stage uses.
type StageModel struct {
	Model string `mapstructure:"model"`
}

// PlannerConfig selects the planner model and whether the plan is streamed.
type PlannerConfig struct {
	Model  string `mapstructure:"model"`
	Stream bool   `mapstructure:"stream"`
}

// WorkerModel configures the per-subtask research agents.
type WorkerModel struct {
	Model    string `mapstructure:"model"`
	MaxSteps int    `mapstructure:"max_steps"`
}

// SynthesizerConfig configures the final merge step.
type SynthesizerConfig struct {
	Model     string `mapstructure:"model"`
	FactCheck bool   `mapstructure:"fact_check"`
	MaxSteps  int    `mapstructure:"max_steps"`
}

func (c LLMConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("llm.api_key required (or OPENAI_API_KEY)")
	}
	for stage, model := range map[string]string{
		"planner":     c.Planner.Model,
		"splitter":    c.Splitter.Model,
		"worker":      c.Worker.Model,
		"synthesizer": c.Synthesizer.Model,
	} {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("llm.%s.model required", stage)
		}
	}
	return nil
}

// ToolsConfig configures the search/fetch tool set shared by workers.
type ToolsConfig struct {
	Search SearchConfig `mapstructure:"search"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Cache  CacheConfig  `mapstructure:"cache"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper, brave
	APIKey       string        `mapstructure:"api_key"`
	DefaultLimit int           `mapstructure:"default_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// FetchConfig selects the page fetch backend.
type FetchConfig struct {
	Backend   string        `mapstructure:"backend"` // http, chromedp
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
}

// CacheConfig enables the Redis tool result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

func (t ToolsConfig) Validate() error {
	switch t.Search.Provider {
	case "serper", "brave":
	default:
		return fmt.Errorf("tools.search.provider must be serper or brave, got %q", t.Search.Provider)
	}
	if strings.TrimSpace(t.Search.APIKey) == "" {
		return fmt.Errorf("tools.search.api_key required for provider %s", t.Search.Provider)
	}
	switch t.Fetch.Backend {
	case "http", "chromedp":
	default:
		return fmt.Errorf("tools.fetch.backend must be http or chromedp, got %q", t.Fetch.Backend)
	}
	if t.Cache.Enabled {
		if err := t.Cache.Redis.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WorkersConfig bounds the fan-out stage.
type WorkersConfig struct {
	// MaxConcurrency caps simultaneously running workers; 0 means one goroutine per subtask.
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxSubtasks    int           `mapstructure:"max_subtasks"`
}

func (w WorkersConfig) Validate() error {
	if w.MaxConcurrency < 0 {
		return fmt.Errorf("workers.max_concurrency cannot be negative")
	}
	if w.MaxSubtasks <= 0 {
		return fmt.Errorf("workers.max_subtasks must be > 0")
	}
	return nil
}

// OutputConfig controls where the CLI writes run artifacts.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("tools.cache.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("tools.cache.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether enough is configured to open a connection.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout", 5*time.Minute)
	v.SetDefault("llm.planner.model", "gpt-4.1")
	v.SetDefault("llm.planner.stream", true)
	v.SetDefault("llm.splitter.model", "gpt-4.1-mini")
	v.SetDefault("llm.worker.model", "gpt-4.1-mini")
	v.SetDefault("llm.worker.max_steps", 12)
	v.SetDefault("llm.synthesizer.model", "gpt-4.1")
	v.SetDefault("llm.synthesizer.fact_check", true)
	v.SetDefault("llm.synthesizer.max_steps", 8)
	v.SetDefault("tools.search.provider", "serper")
	v.SetDefault("tools.search.default_limit", 5)
	v.SetDefault("tools.search.timeout", 20*time.Second)
	v.SetDefault("tools.fetch.backend", "http")
	v.SetDefault("tools.fetch.timeout", 30*time.Second)
	v.SetDefault("tools.fetch.max_chars", 10000)
	v.SetDefault("tools.fetch.user_agent", "DeepResearch/1.0 (+https://github.com/mohammad-safakhou/deepresearch)")
	v.SetDefault("tools.cache.enabled", false)
	v.SetDefault("tools.cache.ttl", 24*time.Hour)
	v.SetDefault("tools.cache.redis.host", "localhost")
	v.SetDefault("tools.cache.redis.port", "6379")
	v.SetDefault("workers.max_concurrency", 8)
	v.SetDefault("workers.timeout", 10*time.Minute)
	v.SetDefault("workers.max_subtasks", 12)
	v.SetDefault("output.dir", "research_results")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("telemetry.service_name", "deepresearch")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
}

// LoadConfig loads config from an optional file plus DEEPRESEARCH_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DEEPRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyEnvFallbacks()
	return &cfg, nil
}

func (c *Config) applyEnvFallbacks() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" && c.LLM.BaseURL == "https://api.openai.com/v1" {
		c.LLM.BaseURL = base
	}
	if c.Tools.Search.APIKey == "" {
		switch c.Tools.Search.Provider {
		case "serper":
			c.Tools.Search.APIKey = os.Getenv("SERPER_API_KEY")
		case "brave":
			c.Tools.Search.APIKey = os.Getenv("BRAVE_API_KEY")
		}
	}
}

// ValidatePipeline checks everything a research run needs.
func (c *Config) ValidatePipeline() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Tools.Validate(); err != nil {
		return err
	}
	if err := c.Workers.Validate(); err != nil {
		return err
	}
	return c.Storage.Postgres.Validate()
}
