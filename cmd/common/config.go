// Package common holds the configuration loading and dependency wiring
// shared by every command.
package common

import (
	"fmt"

	"github.com/spf13/viper"

	infraconfig "github.com/jonesrussell/north-cloud/problemsync/infrastructure/config"
	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd/common.Version=...".
var Version = "dev"

// DefaultConfigPath is read when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = config.DefaultPath

// Viper keys. Command flags are bound to the same dotted keys the YAML file
// uses, so a flag only wins when it was given explicitly.
const (
	KeyConfig       = "config"
	KeyDebug        = "debug"
	KeyCSVPath      = "csv_path"
	KeySchedule     = "schedule"
	KeyWorkers      = "pipeline.workers"
	KeyLimit        = "pipeline.limit"
	KeyForceRefresh = "pipeline.force_refresh"
	KeySkipPublish  = "pipeline.skip_publish"
	KeyServerAddr   = "server.address"
)

// LoadConfig reads the config file, applies environment and flag overrides,
// and validates the result.
func LoadConfig() (*config.Config, error) {
	path := viper.GetString(KeyConfig)
	if path == "" {
		path = infraconfig.GetConfigPath(DefaultConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg)

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if viper.GetBool(KeyDebug) {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = logger.FormatConsole
		cfg.Server.Debug = true
	}
	if viper.IsSet(KeyCSVPath) {
		cfg.CSVPath = viper.GetString(KeyCSVPath)
	}
	if viper.IsSet(KeySchedule) {
		cfg.Schedule = viper.GetString(KeySchedule)
	}
	if viper.IsSet(KeyWorkers) {
		cfg.Pipeline.Workers = viper.GetInt(KeyWorkers)
	}
	if viper.IsSet(KeyLimit) {
		cfg.Pipeline.Limit = viper.GetInt(KeyLimit)
	}
	if viper.IsSet(KeyForceRefresh) {
		cfg.Pipeline.ForceRefresh = viper.GetBool(KeyForceRefresh)
	}
	if viper.IsSet(KeySkipPublish) {
		cfg.Pipeline.SkipPublish = viper.GetBool(KeySkipPublish)
	}
	if viper.IsSet(KeyServerAddr) {
		cfg.Server.Address = viper.GetString(KeyServerAddr)
	}
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}
