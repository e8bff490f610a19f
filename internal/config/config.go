// Package config assembles the application configuration from every component's section.
package config

import (
	"errors"
	"fmt"

	infraconfig "github.com/jonesrussell/north-cloud/problemsync/infrastructure/config"
	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/checkpoint"
	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
	"github.com/jonesrussell/north-cloud/problemsync/internal/extract"
	"github.com/jonesrussell/north-cloud/problemsync/internal/notion"
	"github.com/jonesrussell/north-cloud/problemsync/internal/pipeline"
	"github.com/jonesrussell/north-cloud/problemsync/internal/publish"
	"github.com/jonesrussell/north-cloud/problemsync/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/problemsync/internal/retry"
	"github.com/jonesrussell/north-cloud/problemsync/internal/server"
	"github.com/jonesrussell/north-cloud/problemsync/internal/source"
)

// DefaultPath is the config file read when --config and CONFIG_PATH are unset.
const DefaultPath = "config.yml"

// Config is the complete application configuration.
type Config struct {
	Logging    logger.Config     `yaml:"logging"`
	Source     source.Config     `yaml:"source"`
	Notion     notion.Config     `yaml:"notion"`
	Publish    publish.Config    `yaml:"publish"`
	Retry      retry.Config      `yaml:"retry"`
	Checkpoint checkpoint.Config `yaml:"checkpoint"`
	RateLimit  ratelimit.Config  `yaml:"ratelimit"`
	Pipeline   pipeline.Options  `yaml:"pipeline"`
	Content    content.Config    `yaml:"content"`
	Server     server.Config     `yaml:"server"`
	Extract    ExtractConfig     `yaml:"extract"`
	// Schedule is the cron spec used by the serve command. Empty disables
	// scheduled runs.
	Schedule string `env:"SYNC_SCHEDULE" yaml:"schedule"`
	// CSVPath is the work-item list used by scheduled runs and by sync when
	// --csv is not given.
	CSVPath string `env:"SYNC_CSV_PATH" yaml:"csv_path"`
}

// ExtractConfig locates the selector profile.
type ExtractConfig struct {
	// ProfilePath is a YAML selector profile. Empty uses the built-in profile.
	ProfilePath string `env:"EXTRACT_PROFILE_PATH" yaml:"profile_path"`
}

// Load reads path, applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, (*Config).SetDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Source = c.Source.WithDefaults()
	c.Notion.SetDefaults()
	c.Publish.SetDefaults()
	c.Retry = c.Retry.WithDefaults()
	c.Checkpoint.SetDefaults()
	c.RateLimit = c.RateLimit.WithDefaults()
	c.Pipeline.SetDefaults()
	c.Content.SetDefaults()
	c.Server.SetDefaults()
	if c.CSVPath == "" {
		c.CSVPath = "leetcode.csv"
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(infraconfig.ValidateLogLevel(c.Logging.Level))
	add(infraconfig.ValidateOneOf("logging.format", c.Logging.Format, logger.FormatJSON, logger.FormatConsole))
	add(infraconfig.ValidateOneOf("checkpoint.driver", c.Checkpoint.Driver,
		checkpoint.DriverMemory, checkpoint.DriverSQLite, checkpoint.DriverPostgres, checkpoint.DriverRedis))
	add(infraconfig.ValidateOneOf("ratelimit.backend", c.RateLimit.Backend, ratelimit.BackendLocal, ratelimit.BackendRedis))
	add(infraconfig.ValidatePositive("pipeline.workers", c.Pipeline.Workers))
	add(infraconfig.ValidatePositive("publish.max_blocks_per_request", c.Publish.MaxBlocksPerRequest))
	add(infraconfig.ValidatePositive("content.max_text_length", c.Content.MaxTextLength))

	if c.Checkpoint.Driver == checkpoint.DriverPostgres {
		add(infraconfig.ValidateRequired("checkpoint.dsn", c.Checkpoint.DSN))
	}
	if c.Checkpoint.Driver == checkpoint.DriverRedis || c.RateLimit.Backend == ratelimit.BackendRedis {
		add(infraconfig.ValidateRequired("checkpoint.redis.address", c.Checkpoint.Redis.Address))
	}
	if c.Pipeline.Limit < 0 {
		add(&infraconfig.ValidationError{Field: "pipeline.limit", Message: "must not be negative"})
	}

	return errors.Join(errs...)
}

// ValidatePublish checks the settings needed to write to Notion.
func (c *Config) ValidatePublish() error {
	return errors.Join(
		infraconfig.ValidateRequired("notion.token", c.Notion.Token),
		infraconfig.ValidateRequired("notion.database_id", c.Notion.DatabaseID),
	)
}

// Profile returns the configured selector profile.
func (c *Config) Profile() (extract.SelectorProfile, error) {
	if c.Extract.ProfilePath == "" {
		return extract.DefaultProfile(), nil
	}
	return extract.LoadProfile(c.Extract.ProfilePath)
}
