package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEngineConfig_ApplyDefaults(t *testing.T) {
	cfg := EngineConfig{}
	cfg.ApplyDefaults()

	if cfg.RetryBackoffBase != time.Second {
		t.Errorf("expected 1s backoff base, got %s", cfg.RetryBackoffBase)
	}
	if cfg.TickInterval != 10*time.Millisecond {
		t.Errorf("expected 10ms tick, got %s", cfg.TickInterval)
	}
	if cfg.MaxLayerDepth != 10 {
		t.Errorf("expected max layer depth 10, got %d", cfg.MaxLayerDepth)
	}
	if cfg.MaxAdaptations != 3 {
		t.Errorf("expected 3 max adaptations, got %d", cfg.MaxAdaptations)
	}
	if cfg.MetricsHistoryLimit != 1000 {
		t.Errorf("expected history limit 1000, got %d", cfg.MetricsHistoryLimit)
	}
}

func TestEngineConfig_ApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := EngineConfig{TickInterval: time.Millisecond, MaxAdaptations: 5}
	cfg.ApplyDefaults()

	if cfg.TickInterval != time.Millisecond {
		t.Errorf("explicit tick interval overwritten: %s", cfg.TickInterval)
	}
	if cfg.MaxAdaptations != 5 {
		t.Errorf("explicit max adaptations overwritten: %d", cfg.MaxAdaptations)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	cfg.Environment = "qa"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid environment")
	}
}

func TestEngineConfig_Validate_BackoffOrdering(t *testing.T) {
	cfg := EngineConfig{
		RetryBackoffBase: time.Minute,
		MaxRetryBackoff:  time.Second,
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when backoff base exceeds max")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := []byte(`
name: engine-test
environment: staging
engine:
  max_layer_depth: 4
  tick_interval: 5ms
logging:
  level: debug
  format: json
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoaderOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Name != "engine-test" {
		t.Errorf("expected name engine-test, got %s", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment staging, got %s", cfg.Environment)
	}
	if cfg.Engine.MaxLayerDepth != 4 {
		t.Errorf("expected max layer depth 4, got %d", cfg.Engine.MaxLayerDepth)
	}
	if cfg.Engine.TickInterval != 5*time.Millisecond {
		t.Errorf("expected 5ms tick, got %s", cfg.Engine.TickInterval)
	}
	// Unset fields fall back to defaults.
	if cfg.Engine.MetricsHistoryLimit != 1000 {
		t.Errorf("expected default history limit, got %d", cfg.Engine.MetricsHistoryLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigFile: "/nonexistent/config.yml"})
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
