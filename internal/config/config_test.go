package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_ENGAGE_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Balancing.K != 5 || cfg.Balancing.TestFraction != 0.2 || cfg.Monitor.Window != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Alerts.Capacity != 1000 {
		t.Fatalf("expected alert capacity 1000, got %d", cfg.Alerts.Capacity)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engage.yaml")
	if err := os.WriteFile(path, []byte(`
balancing:
  strategy: combined
  k: 3
monitor:
  window: 6h
stream:
  backend: nats
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MIRADOR_ENGAGE_BALANCING_K", "4")
	t.Setenv("MIRADOR_ENGAGE_CACHE_ENABLED", "false")
	t.Setenv("MIRADOR_ENGAGE_EXPORT_WINDOW", "2h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Balancing.Strategy != "combined" || cfg.Balancing.K != 4 {
		t.Fatalf("unexpected balancing config %+v", cfg.Balancing)
	}
	if cfg.Monitor.Window != 6*time.Hour || cfg.Stream.Backend != "nats" {
		t.Fatalf("unexpected monitor/stream config %+v %+v", cfg.Monitor, cfg.Stream)
	}
	if cfg.Cache.Enabled || cfg.Export.Window != 2*time.Hour {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Cache, cfg.Export)
	}
	if cfg.Balancing.Seed != 42 {
		t.Fatalf("expected default seed to survive partial file, got %d", cfg.Balancing.Seed)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("MIRADOR_ENGAGE_TEST_FRACTION", "1.5")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "testFraction") {
		t.Fatalf("expected testFraction error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
