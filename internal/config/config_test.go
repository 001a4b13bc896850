package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MaxConnections != 100 {
		t.Errorf("MaxConnections = %d, want 100", cfg.MaxConnections)
	}
	if cfg.RequestsPerMinute != 2000 {
		t.Errorf("RequestsPerMinute = %d, want 2000", cfg.RequestsPerMinute)
	}
	if cfg.WorkQueueSize != 1000 {
		t.Errorf("WorkQueueSize = %d, want 1000", cfg.WorkQueueSize)
	}
	if cfg.HeadStateTTL != 3*time.Second {
		t.Errorf("HeadStateTTL = %v, want 3s", cfg.HeadStateTTL)
	}
	if cfg.WitnessTTL != 5*time.Minute {
		t.Errorf("WitnessTTL = %v, want 5m", cfg.WitnessTTL)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Listen != want.Listen || cfg.MaxConnections != want.MaxConnections {
		t.Errorf("Load(\"\") = %+v, want %+v", cfg, want)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")
	body := `{"listen":":9999","maxConnections":50,"headStateTTLMs":1500}`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("Listen = %q, want :9999", cfg.Listen)
	}
	if cfg.MaxConnections != 50 {
		t.Errorf("MaxConnections = %d, want 50", cfg.MaxConnections)
	}
	if cfg.HeadStateTTL != 1500*time.Millisecond {
		t.Errorf("HeadStateTTL = %v, want 1500ms", cfg.HeadStateTTL)
	}
	// Unspecified fields keep their default.
	if cfg.RequestsPerMinute != Default().RequestsPerMinute {
		t.Errorf("RequestsPerMinute = %d, want default %d", cfg.RequestsPerMinute, Default().RequestsPerMinute)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RELAYGATE_MAX_CONNECTIONS", "7")
	t.Setenv("RELAYGATE_UPSTREAMS", "http://a, http://b")
	t.Setenv("RELAYGATE_WITNESS_TTL_MS", "60000")

	cfg := Default()
	FromEnv(&cfg)

	if cfg.MaxConnections != 7 {
		t.Errorf("MaxConnections = %d, want 7", cfg.MaxConnections)
	}
	if len(cfg.Upstreams) != 2 || cfg.Upstreams[0] != "http://a" || cfg.Upstreams[1] != "http://b" {
		t.Errorf("Upstreams = %v, want [http://a http://b]", cfg.Upstreams)
	}
	if cfg.WitnessTTL != time.Minute {
		t.Errorf("WitnessTTL = %v, want 1m", cfg.WitnessTTL)
	}
}
