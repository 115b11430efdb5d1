// Package config loads the YAML application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// DatabasePath is the SQLite file location.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// StaticDir is the directory of static frontend files. Empty disables
	// static serving.
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	// MaxOverrideShiftHours bounds how far an override may move an occurrence
	// from its original start, in hours. The same value pads the
	// exception/override fetch window around a query range, so the two can
	// never disagree.
	MaxOverrideShiftHours int `yaml:"max_override_shift_hours" json:"max_override_shift_hours"`

	// AuditSchedule is a cron-style schedule for the data-quality audit that
	// reports occurrence keys carrying both an exception and an override.
	// Empty disables the audit.
	AuditSchedule string `yaml:"audit_schedule" json:"audit_schedule"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:                ":8080",
		DatabasePath:          "data/calview.db",
		StaticDir:             "",
		MaxOverrideShiftHours: 7 * 24,
		AuditSchedule:         "@every 10m",
	}
}

// Load reads the configuration file at path, filling unset fields with
// defaults. A missing file is not an error: the defaults are returned, so a
// bare binary runs without any configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Listen == "" {
		cfg.Listen = Default().Listen
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = Default().DatabasePath
	}
	if cfg.MaxOverrideShiftHours <= 0 {
		cfg.MaxOverrideShiftHours = Default().MaxOverrideShiftHours
	}

	return cfg, nil
}

// MaxOverrideShift returns the override shift bound as a duration.
func (c Config) MaxOverrideShift() time.Duration {
	return time.Duration(c.MaxOverrideShiftHours) * time.Hour
}
