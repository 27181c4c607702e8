package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for a dermbill run.
type Config struct {
	DSN       string
	LogFormat string // "text" or "json"
	LogLevel  string

	// UseDatabase loads the reference tables from Postgres instead of the
	// embedded copies.
	UseDatabase bool

	// AggressiveUnbundling attaches distinct-service modifiers to
	// modifier-allowed edit pairs even without documented distinct sites.
	AggressiveUnbundling bool
	MaxScenarioMatches   int

	// ListenAddr is the HTTP API bind address for the serve command.
	ListenAddr string

	// OutputFormat is the analyze report format: "text" or "json".
	OutputFormat string

	// ChronicConditions replaces the built-in chronic-condition keyword
	// list when non-empty. File-only; practices tune this per specialty.
	ChronicConditions []string
}

// yamlConfig is the on-disk YAML structure. Flags override file values.
type yamlConfig struct {
	LogFormat            string `yaml:"log_format"`
	LogLevel             string `yaml:"log_level"`
	AggressiveUnbundling *bool  `yaml:"aggressive_unbundling"`
	MaxScenarioMatches   int      `yaml:"max_scenario_matches"`
	ListenAddr           string   `yaml:"listen_addr"`
	ChronicConditions    []string `yaml:"chronic_conditions"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Values already set on the Config win over file values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if c.LogFormat == "" {
		c.LogFormat = yc.LogFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = yc.LogLevel
	}
	if yc.AggressiveUnbundling != nil && !c.AggressiveUnbundling {
		c.AggressiveUnbundling = *yc.AggressiveUnbundling
	}
	if c.MaxScenarioMatches == 0 {
		c.MaxScenarioMatches = yc.MaxScenarioMatches
	}
	if c.ListenAddr == "" {
		c.ListenAddr = yc.ListenAddr
	}
	if len(c.ChronicConditions) == 0 {
		c.ChronicConditions = yc.ChronicConditions
	}
	return c.Validate()
}

// Validate checks enumerated fields and ranges.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch c.OutputFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	if c.MaxScenarioMatches < 0 {
		return fmt.Errorf("max scenario matches must not be negative")
	}
	return nil
}

// ValidateWithDSN checks general fields plus the database connection string.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}
