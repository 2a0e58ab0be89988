package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Export    ExportConfig    `mapstructure:"export"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Server    ServerConfig    `mapstructure:"server"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// FetchConfig holds content fetch settings
type FetchConfig struct {
	PageSize      int           `mapstructure:"page_size"`
	MaxPages      int           `mapstructure:"max_pages"`
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	Workers       int           `mapstructure:"workers"`
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FetchCron string `mapstructure:"fetch_cron"`
}

// RateLimitConfig holds per-platform rate limiting settings
type RateLimitConfig struct {
	GitHubRequestsPerHour      int `mapstructure:"github_requests_per_hour"`
	RedditRequestsPerMinute    int `mapstructure:"reddit_requests_per_minute"`
	MediumRequestsPerMinute    int `mapstructure:"medium_requests_per_minute"`
	ZsxqRequestsPerMinute      int `mapstructure:"zsxq_requests_per_minute"`
	AnthropicRequestsPerMinute int `mapstructure:"anthropic_requests_per_minute"`
	SheetsRequestsPerMinute    int `mapstructure:"sheets_requests_per_minute"`
}

// ExportConfig holds export settings
type ExportConfig struct {
	CSVDir             string `mapstructure:"csv_dir"`
	SheetsEnabled      bool   `mapstructure:"sheets_enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ServerConfig holds the health endpoint settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".content-aggregator"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("AGGREGATOR")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("database.driver", "AGGREGATOR_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "AGGREGATOR_DATABASE_DSN")
	v.BindEnv("logging.level", "AGGREGATOR_LOGGING_LEVEL")
	v.BindEnv("scheduler.enabled", "AGGREGATOR_SCHEDULER_ENABLED")
	v.BindEnv("scheduler.fetch_cron", "AGGREGATOR_SCHEDULER_FETCH_CRON")
	v.BindEnv("anthropic.api_key", "AGGREGATOR_ANTHROPIC_API_KEY")
	v.BindEnv("export.sheets_enabled", "AGGREGATOR_EXPORT_SHEETS_ENABLED")
	v.BindEnv("export.spreadsheet_id", "AGGREGATOR_EXPORT_SPREADSHEET_ID")
	v.BindEnv("export.credentials_file", "AGGREGATOR_EXPORT_CREDENTIALS_FILE")
	v.BindEnv("export.service_account_json", "AGGREGATOR_EXPORT_SERVICE_ACCOUNT_JSON")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/aggregator.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	// Fetch defaults
	v.SetDefault("fetch.page_size", 50)
	v.SetDefault("fetch.max_pages", 50)
	v.SetDefault("fetch.run_timeout", "10m")
	v.SetDefault("fetch.retry_attempts", 3)
	v.SetDefault("fetch.retry_backoff", "2s")
	v.SetDefault("fetch.workers", 4)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.fetch_cron", "0 */2 * * *") // Every 2 hours

	// Rate limit defaults
	v.SetDefault("rate_limit.github_requests_per_hour", 5000)
	v.SetDefault("rate_limit.reddit_requests_per_minute", 60)
	v.SetDefault("rate_limit.medium_requests_per_minute", 30)
	v.SetDefault("rate_limit.zsxq_requests_per_minute", 20)
	v.SetDefault("rate_limit.anthropic_requests_per_minute", 10)
	v.SetDefault("rate_limit.sheets_requests_per_minute", 60)

	// Export defaults
	v.SetDefault("export.csv_dir", "./exports")
	v.SetDefault("export.sheets_enabled", false)
	v.SetDefault("export.sheet_name", "Contents")

	// Anthropic defaults
	v.SetDefault("anthropic.enabled", false)
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)

	// Server defaults
	v.SetDefault("server.addr", ":8090")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Anthropic.Enabled && c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required when anthropic is enabled")
	}
	if c.Export.SheetsEnabled && c.Export.SpreadsheetID == "" {
		return fmt.Errorf("export.spreadsheet_id is required when sheets export is enabled")
	}
	return nil
}
