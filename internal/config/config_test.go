package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Adapter.Type != "synthetic" {
		t.Errorf("expected default adapter synthetic, got %s", cfg.Adapter.Type)
	}
	if cfg.Evaluation.TickTimeout != 30*time.Second {
		t.Errorf("expected default tick timeout 30s, got %s", cfg.Evaluation.TickTimeout)
	}
	if cfg.ListenAddr() != "0.0.0.0:8080" {
		t.Errorf("unexpected listen addr %s", cfg.ListenAddr())
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
slo:
  directory: /etc/aegis/slo
adapter:
  type: prometheus
  prometheus_url: http://prom:9090
logger:
  level: debug
  format: console
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.SLO.Directory != "/etc/aegis/slo" {
		t.Errorf("unexpected SLO directory %s", cfg.SLO.Directory)
	}
	if cfg.Adapter.PrometheusURL != "http://prom:9090" {
		t.Errorf("unexpected prometheus URL %s", cfg.Adapter.PrometheusURL)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("unexpected log level %s", cfg.Logger.Level)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
			SLO:     SLOConfig{Directory: "slo", SchemaPath: "schemas/slo_v1.json"},
			Adapter: AdapterConfig{Type: "synthetic"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"missing slo directory", func(c *Config) { c.SLO.Directory = "" }, true},
		{"missing schema path", func(c *Config) { c.SLO.SchemaPath = "" }, true},
		{"unknown adapter", func(c *Config) { c.Adapter.Type = "graphite" }, true},
		{"prometheus without url", func(c *Config) { c.Adapter.Type = "prometheus" }, true},
		{"storage enabled without path", func(c *Config) { c.Storage.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if _, err := NewLogger(LoggerConfig{Level: "nope"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := NewLogger(LoggerConfig{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}
