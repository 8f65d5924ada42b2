package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.example.com/v1
  token: tok-123
  max_retries: 5

stream:
  max_reconnect_attempts: 4
  buffer_size: 50

symbols:
  trades: [AAPL, MSFT]
  bars: [NVDA]

metrics:
  port: 9100
  path: /metrics
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.com/v1" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Token != "tok-123" {
		t.Errorf("Token = %q", cfg.API.Token)
	}
	if cfg.API.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.API.MaxRetries)
	}
	if cfg.Stream.MaxReconnectAttempts != 4 {
		t.Errorf("MaxReconnectAttempts = %d, want 4", cfg.Stream.MaxReconnectAttempts)
	}
	if cfg.Stream.BufferSize != 50 {
		t.Errorf("BufferSize = %d, want 50", cfg.Stream.BufferSize)
	}
	if len(cfg.Symbols.Trades) != 2 || cfg.Symbols.Trades[0] != "AAPL" {
		t.Errorf("Trades = %v", cfg.Symbols.Trades)
	}
	if len(cfg.Symbols.Bars) != 1 || cfg.Symbols.Bars[0] != "NVDA" {
		t.Errorf("Bars = %v", cfg.Symbols.Bars)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Metrics.Port)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("MARKETSTREAM_TEST_TOKEN", "from-env")

	path := writeConfig(t, `
api:
  base_url: https://api.example.com/v1
  token: ${MARKETSTREAM_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.API.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "api: [not: a: mapping")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadAndValidate_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.example.com/v1
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.API.Timeout)
	}
	if cfg.API.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.API.MaxRetries)
	}
	if cfg.Stream.ReconnectBaseDelay != time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 1s", cfg.Stream.ReconnectBaseDelay)
	}
	if cfg.Stream.ReconnectMaxDelay != 60*time.Second {
		t.Errorf("ReconnectMaxDelay = %v, want 60s", cfg.Stream.ReconnectMaxDelay)
	}
	if cfg.Stream.MaxReconnectAttempts != 10 {
		t.Errorf("MaxReconnectAttempts = %d, want 10", cfg.Stream.MaxReconnectAttempts)
	}
	if cfg.Stream.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Stream.BufferSize != 1000 {
		t.Errorf("BufferSize = %d, want 1000", cfg.Stream.BufferSize)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Metrics.Port)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.API.BaseURL = "https://api.example.com/v1"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "non-positive base delay",
			mutate:  func(c *Config) { c.Stream.ReconnectBaseDelay = -time.Second },
			wantErr: "reconnect_base_delay",
		},
		{
			name: "max delay below base delay",
			mutate: func(c *Config) {
				c.Stream.ReconnectBaseDelay = 10 * time.Second
				c.Stream.ReconnectMaxDelay = time.Second
			},
			wantErr: "reconnect_max_delay",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Stream.MaxReconnectAttempts = 0 },
			wantErr: "max_reconnect_attempts",
		},
		{
			name:    "zero buffer",
			mutate:  func(c *Config) { c.Stream.BufferSize = 0 },
			wantErr: "buffer_size",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
