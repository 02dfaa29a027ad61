// Package config loads datadash settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/datadash/engine"
)

// Config is the full configuration file.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Report ReportConfig `yaml:"report"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// ReportConfig holds engine defaults.
type ReportConfig struct {
	TopN               int     `yaml:"top_n"`
	RankBy             string  `yaml:"rank_by"`
	ReturnRateHigh     float64 `yaml:"return_rate_high"`     // percent
	ReturnRateModerate float64 `yaml:"return_rate_moderate"` // percent
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Pretty: true},
		Server: ServerConfig{Addr: ":8080", MaxUploadMB: 50},
		Report: ReportConfig{
			TopN:               engine.DefaultTopN,
			RankBy:             string(engine.RankSales),
			ReturnRateHigh:     engine.DefaultReturnRateHigh,
			ReturnRateModerate: engine.DefaultReturnRateModerate,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be >= 1, got %d", c.Server.MaxUploadMB))
	}
	if c.Report.TopN < 1 {
		errs = append(errs, fmt.Errorf("report.top_n must be >= 1, got %d", c.Report.TopN))
	}
	if _, ok := engine.ParseRankMetric(c.Report.RankBy); !ok {
		errs = append(errs, fmt.Errorf("report.rank_by %q is not one of sales, profit, quantity", c.Report.RankBy))
	}
	if c.Report.ReturnRateModerate > c.Report.ReturnRateHigh {
		errs = append(errs, fmt.Errorf("report.return_rate_moderate (%.1f) exceeds return_rate_high (%.1f)",
			c.Report.ReturnRateModerate, c.Report.ReturnRateHigh))
	}
	return errors.Join(errs...)
}

// EngineOptions turns the report section into engine options.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithDefaultTopN(c.Report.TopN),
		engine.WithReturnThresholds(c.Report.ReturnRateHigh, c.Report.ReturnRateModerate),
	}
}

// RankMetric returns the configured default ranking metric.
func (c *Config) RankMetric() engine.RankMetric {
	m, _ := engine.ParseRankMetric(c.Report.RankBy)
	return m
}

// LogLevel returns the configured level, info when unparseable.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
