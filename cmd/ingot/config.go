package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the ingot configuration file
// (~/.config/ingot/config.yaml). Pointer fields distinguish "not set" from
// zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Bench defaults
	Warmup *int64 `yaml:"warmup"`
	Runs   *int64 `yaml:"runs"`
	Batch  *int64 `yaml:"batch"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ingot", "config.yaml")
}

func loadConfig() Config {
	return loadConfigFrom(configPath())
}

func loadConfigFrom(path string) Config {
	var cfg Config
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	// A malformed config file falls back to defaults; flags still apply.
	_ = yaml.Unmarshal(data, &cfg)
	return cfg
}

// applyLogConfig applies config file defaults to the log flags when the
// corresponding CLI flag was not explicitly set.
func applyLogConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyBenchConfig applies config file defaults to bench parameters.
func applyBenchConfig(c *cli.Command, cfg Config, warmup, runs, batch *int64) {
	if cfg.Warmup != nil && !c.IsSet("warmup") {
		*warmup = *cfg.Warmup
	}
	if cfg.Runs != nil && !c.IsSet("runs") {
		*runs = *cfg.Runs
	}
	if cfg.Batch != nil && !c.IsSet("batch") {
		*batch = *cfg.Batch
	}
}
