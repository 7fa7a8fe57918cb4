package config

import (
	"fmt"
	"time"

	"github.com/skillsenselab/composekit/logger"
)

// Config is the root configuration for an embedding application.
// Projects extend this by embedding it in their own config structs.
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
	Engine      EngineConfig  `yaml:"engine" mapstructure:"engine"`
}

// EngineConfig carries tunables shared by every composer.
type EngineConfig struct {
	// RetryBackoffBase is the unit multiplied by 2^attempt between retries.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" mapstructure:"retry_backoff_base"`
	// MaxRetryBackoff caps the delay between retry attempts.
	MaxRetryBackoff time.Duration `yaml:"max_retry_backoff" mapstructure:"max_retry_backoff"`
	// TickInterval drives the safety re-check of cooperative wait loops.
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	// MaxLayerDepth bounds the number of layers a cascading composition may declare.
	MaxLayerDepth int `yaml:"max_layer_depth" mapstructure:"max_layer_depth"`
	// DefaultBufferSize is the layer input buffer size when a layer declares none.
	DefaultBufferSize int `yaml:"default_buffer_size" mapstructure:"default_buffer_size"`
	// DefaultMaxConcurrency applies when a parallel composition declares no cap.
	DefaultMaxConcurrency int `yaml:"default_max_concurrency" mapstructure:"default_max_concurrency"`
	// MaxAdaptations bounds the adaptive composer's outer loop when unset by the caller.
	MaxAdaptations int `yaml:"max_adaptations" mapstructure:"max_adaptations"`
	// MetricsHistoryLimit bounds the metrics time-series sample list.
	MetricsHistoryLimit int `yaml:"metrics_history_limit" mapstructure:"metrics_history_limit"`
}

// ApplyDefaults applies default values to the configuration.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "composekit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	c.Engine.ApplyDefaults()
}

// ApplyDefaults applies default values to engine configuration.
func (c *EngineConfig) ApplyDefaults() {
	if c.RetryBackoffBase <= 0 {
		c.RetryBackoffBase = time.Second
	}
	if c.MaxRetryBackoff <= 0 {
		c.MaxRetryBackoff = 30 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 10 * time.Millisecond
	}
	if c.MaxLayerDepth <= 0 {
		c.MaxLayerDepth = 10
	}
	if c.DefaultBufferSize <= 0 {
		c.DefaultBufferSize = 100
	}
	if c.DefaultMaxConcurrency <= 0 {
		c.DefaultMaxConcurrency = 10
	}
	if c.MaxAdaptations <= 0 {
		c.MaxAdaptations = 3
	}
	if c.MetricsHistoryLimit <= 0 {
		c.MetricsHistoryLimit = 1000
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("config.engine: %w", err)
	}
	return nil
}

// Validate validates engine configuration.
func (c *EngineConfig) Validate() error {
	if c.RetryBackoffBase > c.MaxRetryBackoff {
		return fmt.Errorf("engine.retry_backoff_base (%s) exceeds engine.max_retry_backoff (%s)",
			c.RetryBackoffBase, c.MaxRetryBackoff)
	}
	if c.MaxLayerDepth > 100 {
		return fmt.Errorf("engine.max_layer_depth must be <= 100 (got: %d)", c.MaxLayerDepth)
	}
	return nil
}

// Default returns a ready-to-use configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
