// Package config provides configuration management for the candle sync and
// scan pipeline. Configuration is loaded with priority order: environment
// variables over the JSON configuration file over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"log/slog"
)

// Config is the complete application configuration.
type Config struct {
	// DataDir is the directory holding the per-partition dataset files.
	DataDir string `json:"data_dir" env:"DATA_DIR"`

	Exchange ExchangeConfig `json:"exchange"`
	Sync     SyncConfig     `json:"sync"`
	Scan     ScanConfig     `json:"scan"`
	Logging  LoggingConfig  `json:"logging"`
}

// ExchangeConfig configures the exchange adapter.
type ExchangeConfig struct {
	BaseURL        string `json:"base_url" env:"EXCHANGE_BASE_URL"`       // API base URL override, empty for the default
	TimeoutSeconds int    `json:"timeout_seconds" env:"EXCHANGE_TIMEOUT"` // HTTP request timeout
}

// SyncConfig configures the incremental synchronization engine.
type SyncConfig struct {
	QuoteCurrency string `json:"quote_currency" env:"QUOTE_CURRENCY"` // Catalog quote currency filter
	Concurrency   int    `json:"concurrency" env:"SYNC_CONCURRENCY"`  // Max fetches in flight
	PacingMillis  int    `json:"pacing_millis" env:"SYNC_PACING_MS"`  // Delay between fetch starts, 0 disables pacing
	FetchLimit    int    `json:"fetch_limit" env:"SYNC_FETCH_LIMIT"`  // Default look-back rows for new instruments
	Timezone      string `json:"timezone" env:"SYNC_TIMEZONE"`        // Reference timezone for day truncation
	VolumePolicy  string `json:"volume_policy" env:"VOLUME_POLICY"`   // "base" or "notional"
}

// ScanConfig configures the signal scanner.
type ScanConfig struct {
	TopN int `json:"top_n" env:"SCAN_TOP_N"` // Ranked report length
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`             // debug, info, warn, error
	Format     string `json:"format" env:"LOG_FORMAT"`           // json, text
	Output     string `json:"output" env:"LOG_OUTPUT"`           // stdout, stderr, file
	FilePath   string `json:"file_path" env:"LOG_FILE_PATH"`     // Log file path when output is file
	MaxSizeMB  int    `json:"max_size_mb" env:"LOG_MAX_SIZE"`    // Max log file size before rotation
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS"` // Rotated files to keep
	MaxAgeDays int    `json:"max_age_days" env:"LOG_MAX_AGE"`    // Max age of rotated files
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`       // Compress rotated files
}

// Default returns a configuration that is runnable without any config file.
func Default() *Config {
	return &Config{
		DataDir: ".",
		Exchange: ExchangeConfig{
			TimeoutSeconds: 30,
		},
		Sync: SyncConfig{
			QuoteCurrency: "USDT",
			Concurrency:   4,
			PacingMillis:  0,
			FetchLimit:    30,
			Timezone:      "UTC",
			VolumePolicy:  "base",
		},
		Scan: ScanConfig{
			TopN: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   "candlescan.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration from defaults, an optional JSON file and
// environment overrides, then validates it.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path, logger); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"config_path", path,
		"data_dir", cfg.DataDir,
		"quote", cfg.Sync.QuoteCurrency,
		"volume_policy", cfg.Sync.VolumePolicy)
	return cfg, nil
}

func loadFromFile(cfg *Config, path string, logger *slog.Logger) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("config file does not exist, using defaults", "path", path)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, target *string) {
		if val := os.Getenv(key); val != "" {
			*target = val
		}
	}
	setInt := func(key string, target *int) {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*target = n
			}
		}
	}

	setString("DATA_DIR", &cfg.DataDir)
	setString("EXCHANGE_BASE_URL", &cfg.Exchange.BaseURL)
	setInt("EXCHANGE_TIMEOUT", &cfg.Exchange.TimeoutSeconds)
	setString("QUOTE_CURRENCY", &cfg.Sync.QuoteCurrency)
	setInt("SYNC_CONCURRENCY", &cfg.Sync.Concurrency)
	setInt("SYNC_PACING_MS", &cfg.Sync.PacingMillis)
	setInt("SYNC_FETCH_LIMIT", &cfg.Sync.FetchLimit)
	setString("SYNC_TIMEZONE", &cfg.Sync.Timezone)
	setString("VOLUME_POLICY", &cfg.Sync.VolumePolicy)
	setInt("SCAN_TOP_N", &cfg.Scan.TopN)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("LOG_OUTPUT", &cfg.Logging.Output)
	setString("LOG_FILE_PATH", &cfg.Logging.FilePath)
}

// Validate checks the configuration for static misconfiguration. It runs
// before any fetch begins.
func (c *Config) Validate() error {
	if c.Sync.QuoteCurrency == "" {
		return fmt.Errorf("sync.quote_currency is required")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.PacingMillis < 0 {
		return fmt.Errorf("sync.pacing_millis cannot be negative, got %d", c.Sync.PacingMillis)
	}
	if c.Sync.FetchLimit < 1 {
		return fmt.Errorf("sync.fetch_limit must be positive, got %d", c.Sync.FetchLimit)
	}
	if c.Scan.TopN < 1 {
		return fmt.Errorf("scan.top_n must be positive, got %d", c.Scan.TopN)
	}
	switch c.Sync.VolumePolicy {
	case "base", "notional":
	default:
		return fmt.Errorf("sync.volume_policy must be \"base\" or \"notional\", got %q", c.Sync.VolumePolicy)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("sync.timezone is invalid: %w", err)
	}
	switch c.Logging.Output {
	case "", "stdout", "stderr", "file":
	default:
		return fmt.Errorf("logging.output must be stdout, stderr or file, got %q", c.Logging.Output)
	}
	return nil
}

// Location resolves the configured reference timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Sync.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Sync.Timezone)
}

// Pacing returns the configured pacing interval as a duration.
func (c *Config) Pacing() time.Duration {
	return time.Duration(c.Sync.PacingMillis) * time.Millisecond
}
