package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "COMPOSEKIT"

// LoaderOptions controls where configuration is loaded from.
type LoaderOptions struct {
	// ConfigFile is an explicit path to a YAML config file. When empty the
	// loader searches the standard locations.
	ConfigFile string
	// EnvFile is an explicit path to a .env file. When empty the loader
	// looks for ./.env.
	EnvFile string
}

// Load builds a Config from file, .env, and environment layers, applies
// defaults, and validates the result.
func Load(opts LoaderOptions) (*Config, error) {
	loadEnvFile(opts.EnvFile)

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads a .env file if one exists. Missing files are not errors.
func loadEnvFile(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// findConfigFile searches for config.yml in standard locations.
func findConfigFile() string {
	searchPaths := []string{
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
