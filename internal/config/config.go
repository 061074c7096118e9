// Package config loads and saves the framescope driver settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the serialised form of driver preferences persisted to disk.
type Config struct {
	// FrameSeconds is the target length of one frame of the demo loop.
	FrameSeconds float64 `yaml:"frame_seconds"`
	// Frames stops the loop after this many frames. Zero runs until
	// interrupted.
	Frames int `yaml:"frames"`
	// Strict makes instrumentation misuse panic.
	Strict bool `yaml:"strict"`
	// Capacity bounds distinct region names. Zero is unbounded.
	Capacity int `yaml:"capacity"`
	// ShowProcess appends the process CPU line to each report.
	ShowProcess bool `yaml:"show_process"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9464".
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel   string `yaml:"log_level"`
	PrettyLogs bool   `yaml:"pretty_logs"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		FrameSeconds: 0.6,
		ShowProcess:  true,
		LogLevel:     "info",
		PrettyLogs:   true,
	}
}

// Validate reports settings the driver cannot run with.
func (c Config) Validate() error {
	if c.FrameSeconds <= 0 {
		return fmt.Errorf("frame_seconds must be greater than zero, got %v", c.FrameSeconds)
	}
	if c.Frames < 0 {
		return fmt.Errorf("frames must not be negative, got %d", c.Frames)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", c.Capacity)
	}
	return nil
}

// Path returns the absolute path to the config file:
//
//	<UserConfigDir>/framescope/config.yaml
//
// The directory is not guaranteed to exist; Save creates it.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "framescope", "config.yaml"), nil
}

// Load reads the config at path on top of Default. A missing file is not an
// error. Values that are absent in the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory if needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
