// Package config loads noteboks configuration from a YAML file with
// environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv.
const (
	EnvVault       = "NOTEBOKS_VAULT"
	EnvLogLevel    = "NOTEBOKS_LOG_LEVEL"
	EnvScanWorkers = "NOTEBOKS_SCAN_WORKERS"
	EnvHoverScript = "NOTEBOKS_HOVER_SCRIPT"
)

// Config is the complete service configuration.
type Config struct {
	Vault VaultConfig `yaml:"vault"`
	Log   LogConfig   `yaml:"log"`
	Scan  ScanConfig  `yaml:"scan"`
	Hover HoverConfig `yaml:"hover"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := c.Hover.Validate(); err != nil {
		return fmt.Errorf("hover: %w", err)
	}
	return nil
}

// VaultConfig holds the vault root.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate checks that the vault path names an existing directory.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required, validation.By(isDir)),
	)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level slog.Level `yaml:"level"`
}

// ScanConfig tunes the startup scan.
type ScanConfig struct {
	// Workers bounds concurrent file reads.
	Workers int `yaml:"workers"`
}

// Validate validates the scan configuration.
func (c *ScanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
	)
}

// HoverConfig points at an optional Risor hover script.
type HoverConfig struct {
	Script string `yaml:"script"`
}

// Validate checks that a configured script file exists.
func (c *HoverConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Script, validation.When(c.Script != "", validation.By(isFile))),
	)
}

// NewDefault returns a Config with default values. The vault path defaults to
// the working directory.
func NewDefault() *Config {
	return &Config{
		Vault: VaultConfig{Path: "."},
		Log:   LogConfig{Level: slog.LevelInfo},
		Scan:  ScanConfig{Workers: 8},
	}
}

// Load reads filename into target, expanding ${VAR} references first. The
// result is not validated; callers validate after applying overrides.
func Load(filename string, target *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// LoadOptional is Load that treats a missing file as empty.
func LoadOptional(filename string, target *Config) error {
	if filename == "" {
		return nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return Load(filename, target)
}

// FromEnv overrides target with any NOTEBOKS_* variables that are set.
func FromEnv(target *Config) error {
	if v, ok := os.LookupEnv(EnvVault); ok && v != "" {
		target.Vault.Path = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		if err := target.Log.Level.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}
	if v, ok := os.LookupEnv(EnvScanWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvScanWorkers, err)
		}
		target.Scan.Workers = n
	}
	if v, ok := os.LookupEnv(EnvHoverScript); ok {
		target.Hover.Script = v
	}
	return nil
}

func isDir(value any) error {
	path, _ := value.(string)
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory not found: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}

func isFile(value any) error {
	path, _ := value.(string)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory: %s", path)
	}
	return nil
}
