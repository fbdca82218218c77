// Package config loads service configuration from YAML with environment
// overrides for deployment-level settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	NATS       NATSConfig       `yaml:"nats"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ModelConfig selects the LLM collaborator. An empty Name runs the
// service in offline stub mode.
type ModelConfig struct {
	Provider       string   `yaml:"provider"`
	Name           string   `yaml:"name"`
	Endpoint       string   `yaml:"endpoint"`
	Fallbacks      []string `yaml:"fallbacks"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// NATSConfig holds the JetStream connection used for checkpoints.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
}

// CheckpointConfig controls durable workflow state.
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
}

// DefaultConfig returns the configuration used when no file is given:
// offline stub agents, in-memory state only.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Model: ModelConfig{
			Provider:       "openai",
			TimeoutSeconds: 180,
		},
		NATS: NATSConfig{
			URL:      "nats://localhost:4222",
			Embedded: true,
		},
		Checkpoint: CheckpointConfig{
			Bucket: "CONDUCTOR_WORKFLOWS",
		},
	}
}

// LoadFromFile reads path over the defaults, then applies environment
// overrides. An empty path loads defaults plus environment only.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays deployment-level environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("LLM_API_URL"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Model.Name != "" && c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required when model.name is set")
	}
	if c.Model.TimeoutSeconds <= 0 {
		return fmt.Errorf("model.timeout_seconds must be positive, got %d", c.Model.TimeoutSeconds)
	}
	if c.Checkpoint.Enabled && c.NATS.URL == "" && !c.NATS.Embedded {
		return fmt.Errorf("nats.url is required when checkpointing against an external server")
	}
	return nil
}

// OfflineMode reports whether the service should run with stub agents.
func (c *Config) OfflineMode() bool {
	return c.Model.Name == ""
}
