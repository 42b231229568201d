// Package config loads and validates the flow configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/statement-flow/internal/common"
	"github.com/Veraticus/statement-flow/internal/ingest"
	"github.com/Veraticus/statement-flow/internal/rules"
	"github.com/Veraticus/statement-flow/internal/service"
)

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "$HOME/.local/share/flow/flow.db"

// Config is the resolved application configuration.
type Config struct {
	Logging        LoggingConfig
	Database       DatabaseConfig
	User           UserConfig
	Parser         ParserConfig
	Commit         CommitConfig
	Classification ClassificationConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// UserConfig names the user whose data commands operate on.
type UserConfig struct {
	ID string
}

// ClassificationConfig controls when rule matches skip review.
type ClassificationConfig struct {
	AutoConfirm         bool
	ConfidenceThreshold int
}

// CommitConfig tunes batch commits.
type CommitConfig struct {
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	Workers           int
	RetryAttempts     int
}

// ParserConfig versions the normalizers stamped on batches.
type ParserConfig struct {
	Version string
}

// LoggingConfig mirrors the --log-level and --log-format flags.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("user.id", "default")
	v.SetDefault("classification.auto_confirm", true)
	v.SetDefault("classification.confidence_threshold", 80)
	v.SetDefault("commit.workers", 4)
	v.SetDefault("commit.retry_attempts", 3)
	v.SetDefault("commit.retry_initial_delay", 100*time.Millisecond)
	v.SetDefault("commit.retry_max_delay", 5*time.Second)
	v.SetDefault("parser.version", ingest.DefaultParserVersion)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads the configuration from v, applying defaults for unset keys.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Database: DatabaseConfig{Path: ExpandPath(v.GetString("database.path"))},
		User:     UserConfig{ID: strings.TrimSpace(v.GetString("user.id"))},
		Classification: ClassificationConfig{
			AutoConfirm:         v.GetBool("classification.auto_confirm"),
			ConfidenceThreshold: v.GetInt("classification.confidence_threshold"),
		},
		Commit: CommitConfig{
			Workers:           v.GetInt("commit.workers"),
			RetryAttempts:     v.GetInt("commit.retry_attempts"),
			RetryInitialDelay: v.GetDuration("commit.retry_initial_delay"),
			RetryMaxDelay:     v.GetDuration("commit.retry_max_delay"),
		},
		Parser:  ParserConfig{Version: v.GetString("parser.version")},
		Logging: LoggingConfig{Level: v.GetString("logging.level"), Format: v.GetString("logging.format")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("%w: database.path", common.ErrMissingConfig))
	}
	if c.User.ID == "" {
		errs = append(errs, fmt.Errorf("%w: user.id", common.ErrMissingConfig))
	}
	if c.Classification.ConfidenceThreshold < 0 || c.Classification.ConfidenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("%w: classification.confidence_threshold must be between 0 and 100, got %d",
			common.ErrInvalidConfig, c.Classification.ConfidenceThreshold))
	}
	if c.Commit.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: commit.workers must be at least 1, got %d", common.ErrInvalidConfig, c.Commit.Workers))
	}
	if c.Commit.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: commit.retry_attempts must be at least 1, got %d", common.ErrInvalidConfig, c.Commit.RetryAttempts))
	}
	if strings.TrimSpace(c.Parser.Version) == "" {
		errs = append(errs, fmt.Errorf("%w: parser.version", common.ErrMissingConfig))
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: logging.level: %w", common.ErrInvalidConfig, err))
	}
	switch c.Logging.Format {
	case "console", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: logging.format %q", common.ErrInvalidConfig, c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RuleSettings converts the classification section for the rule engine.
func (c *Config) RuleSettings() rules.Settings {
	return rules.Settings{
		AutoConfirmHighConfidence: c.Classification.AutoConfirm,
		ConfidenceThreshold:       c.Classification.ConfidenceThreshold,
	}
}

// RetryOptions converts the commit section for common.WithRetry.
func (c *Config) RetryOptions() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  c.Commit.RetryAttempts,
		InitialDelay: c.Commit.RetryInitialDelay,
		MaxDelay:     c.Commit.RetryMaxDelay,
		Multiplier:   2,
	}
}

// IngestOptions builds the ingestion service options.
func (c *Config) IngestOptions() ingest.Options {
	settings := c.RuleSettings()
	return ingest.Options{
		ParserVersion: c.Parser.Version,
		Settings:      &settings,
		Retry:         c.RetryOptions(),
		Workers:       c.Commit.Workers,
	}
}
