// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	TestRail   TestRailConfig   `mapstructure:"testrail" yaml:"testrail"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the browser session manager.
type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless" yaml:"headless"`
	Engine         string `mapstructure:"engine" yaml:"engine"` // chromium, chrome, edge
	ExecPath       string `mapstructure:"exec_path" yaml:"exec_path"`
	ViewportWidth  int    `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height" yaml:"viewport_height"`
	ResultsDir     string `mapstructure:"results_dir" yaml:"results_dir"`

	// Navigation fallback tiers.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	DOMContentTimeout time.Duration `mapstructure:"dom_content_timeout" yaml:"dom_content_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`

	// Post-action quiet wait before the screenshot.
	PostActionWait time.Duration `mapstructure:"post_action_wait" yaml:"post_action_wait"`
}

// LLMConfig controls the language-model provider. An empty APIKey disables
// the AI paths entirely; the interpreter and oracle then run rule-based.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// TestRailConfig holds credentials for the test-case source.
type TestRailConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	Username       string        `mapstructure:"username" yaml:"username"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ValidationConfig controls the validation oracle.
type ValidationConfig struct {
	// CacheSize bounds the in-memory judgment cache; 0 disables caching.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
	// MaxPageContent truncates the page content block sent to the LLM.
	MaxPageContent int `mapstructure:"max_page_content" yaml:"max_page_content"`
}

const (
	ProviderGemini = "gemini"
)

// SetDefaults registers every default on the given viper instance. Called
// before reading the config file so a missing file still yields a usable
// configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "testflow-cli")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.engine", "chromium")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.results_dir", "test_results")
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.dom_content_timeout", 10*time.Second)
	v.SetDefault("browser.settle_delay", time.Second)
	v.SetDefault("browser.post_action_wait", 5*time.Second)

	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.api_timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.requests_per_minute", 30)

	// Credentials default to empty so the TESTFLOW_* env overrides are
	// visible to Unmarshal even without a config file entry.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("testrail.url", "")
	v.SetDefault("testrail.username", "")
	v.SetDefault("testrail.api_key", "")
	v.SetDefault("testrail.request_timeout", 10*time.Second)
	v.SetDefault("database.dsn", "")

	v.SetDefault("validation.cache_size", 256)
	v.SetDefault("validation.max_page_content", 4000)
}

// Load reads the configuration from the given file (or the default search
// path when empty), layering TESTFLOW_* environment variables on top.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TESTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Browser.Engine {
	case "chromium", "chrome", "edge":
	default:
		return fmt.Errorf("unsupported browser engine: %q", c.Browser.Engine)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}
	return nil
}

// Default returns a configuration with every default applied. Used by tests
// and as the base for programmatic construction.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}
