// Package config provides engine configuration with file, environment, and
// default layering.
//
// EngineConfig carries the tunables shared by every composer: retry backoff
// base, cooperative tick interval, layer buffer defaults, and the metrics
// history cap. Configuration is loaded from an optional YAML file (viper),
// an optional .env file (godotenv), and COMPOSEKIT_-prefixed environment
// variables, in that order of increasing precedence.
//
//	cfg, err := config.Load(config.LoaderOptions{ConfigFile: "config.yml"})
//	if err != nil { ... }
//	seq := composer.NewSequential(cfg, log, rec)
package config
