package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the optional hashtrack settings file
type Config struct {
	Output   string         `yaml:"output"`
	Excludes ExcludesConfig `yaml:"excludes"`
}

// ExcludesConfig lists regular expressions for paths to skip during a scan.
// File patterns match against base names, directory patterns against the
// full directory path.
type ExcludesConfig struct {
	Files []string `yaml:"files"`
	Dirs  []string `yaml:"dirs"`
}

// Default returns the configuration used when no settings file is given.
func Default() *Config {
	return &Config{}
}

// Load reads and parses the settings file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Output = os.ExpandEnv(c.Output)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	for _, p := range c.Excludes.Files {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid excludes.files pattern %q: %w", p, err)
		}
	}
	for _, p := range c.Excludes.Dirs {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid excludes.dirs pattern %q: %w", p, err)
		}
	}
	return nil
}
