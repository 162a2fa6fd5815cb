// Package config loads codescope configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all codescope configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Logging LoggingConfig `yaml:"logging"`

	// Workspace is the directory where .codescope/ state lives.
	Workspace string `yaml:"workspace"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
			Timeout: "120s",
		},
		Logging: LoggingConfig{
			Debug: false,
		},
		Workspace: ".",
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("CODESCOPE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("CODESCOPE_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("CODESCOPE_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if os.Getenv("CODESCOPE_DEBUG") == "1" {
		c.Logging.Debug = true
	}
}

// DefaultPath returns the default config file location under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".codescope", "config.yaml")
}
