package config

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/claimboard/internal/model"
)

// Config holds all runtime configuration for a claimctl run.
type Config struct {
	DSN         string
	LogFormat   string // "text" or "json"
	ClaimsPath  string
	DetailsPath string
	Delimiter   string `yaml:"delimiter"`
	Mode        string
	DryRun      bool
	ConfigPath  string `yaml:"-"`
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	Delimiter string `yaml:"delimiter"`
	LogFormat string `yaml:"log_format"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Values already set (e.g. from flags) take precedence over the file.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if c.Delimiter == "" {
		c.Delimiter = yc.Delimiter
	}
	if c.LogFormat == "" {
		c.LogFormat = yc.LogFormat
	}
	return nil
}

// Validate checks the ingest-related fields and returns an error if the
// config is invalid.
func (c *Config) Validate() error {
	if c.ClaimsPath == "" {
		return fmt.Errorf("--claims is required")
	}
	if c.DetailsPath == "" {
		return fmt.Errorf("--details is required")
	}
	if _, err := os.Stat(c.ClaimsPath); err != nil {
		return fmt.Errorf("claims file not accessible: %w", err)
	}
	if _, err := os.Stat(c.DetailsPath); err != nil {
		return fmt.Errorf("details file not accessible: %w", err)
	}
	if c.Delimiter == "" {
		c.Delimiter = ","
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	if c.Mode == "" {
		c.Mode = string(model.ModeAppend)
	}
	if _, err := model.ParseMode(c.Mode); err != nil {
		return err
	}
	return nil
}

// ValidateWithDSN checks both the ingest fields and the DSN.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a rune.
// Call Validate first; an unset delimiter falls back to a comma.
func (c *Config) DelimiterRune() rune {
	if c.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}
