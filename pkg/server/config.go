package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a linechat server config file. Durations
// use Go syntax ("60s", "2m"). Zero values leave the corresponding Config
// field untouched.
type fileConfig struct {
	ListenAddr    string `yaml:"listen_addr,omitempty"`
	IdleTimeout   string `yaml:"idle_timeout,omitempty"`
	SweepInterval string `yaml:"sweep_interval,omitempty"`
	MetricsAddr   string `yaml:"metrics_addr,omitempty"`
	AuditDB       string `yaml:"audit_db,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`
	LogFormat     string `yaml:"log_format,omitempty"`
}

// LoadConfigFile reads a YAML config file and applies it over cfg,
// returning the merged result. Fields absent from the file keep their
// existing values.
func LoadConfigFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return mergeConfigYAML(data, cfg)
}

func mergeConfigYAML(data []byte, cfg Config) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.IdleTimeout != "" {
		d, err := time.ParseDuration(fc.IdleTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parse config: idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}
	if fc.SweepInterval != "" {
		d, err := time.ParseDuration(fc.SweepInterval)
		if err != nil {
			return cfg, fmt.Errorf("parse config: sweep_interval: %w", err)
		}
		cfg.SweepInterval = d
	}
	if fc.MetricsAddr != "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if fc.AuditDB != "" {
		cfg.AuditDB = fc.AuditDB
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("config: idle_timeout must be positive, got %v", c.IdleTimeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive, got %v", c.SweepInterval)
	}
	return nil
}
