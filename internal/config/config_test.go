package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: desk-1
  player_label: tester
api:
  rest_url: https://casino.example.com
  ws_url: wss://casino.example.com/ws/crash
session:
  reconnect_base: 800ms
  disconnect_grace: 2s
betting:
  min_stake: 100
  max_stake: 50000
  auto_cashout_cooldown: 250ms
database:
  enabled: true
  audit:
    host: localhost
    port: 5432
    name: crash_audit
    user: crash
    password: crashpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "desk-1" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "desk-1")
	}
	if cfg.API.WSURL != "wss://casino.example.com/ws/crash" {
		t.Errorf("API.WSURL = %q", cfg.API.WSURL)
	}
	if cfg.Session.ReconnectBase != 800*time.Millisecond {
		t.Errorf("Session.ReconnectBase = %v, want 800ms", cfg.Session.ReconnectBase)
	}
	if cfg.Session.DisconnectGrace != 2*time.Second {
		t.Errorf("Session.DisconnectGrace = %v, want 2s", cfg.Session.DisconnectGrace)
	}
	if cfg.Betting.MinStake != 100 || cfg.Betting.MaxStake != 50000 {
		t.Errorf("Betting = %+v", cfg.Betting)
	}
	if !cfg.Database.Enabled || cfg.Database.Audit.Name != "crash_audit" {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CRASH_TOKEN", "secret123")

	yaml := `
instance:
  id: desk-1
api:
  ws_url: wss://casino.example.com/ws/crash
  token: ${TEST_CRASH_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Token != "secret123" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "secret123")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("CRASHLINE_TEST_DOTENV=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CRASHLINE_TEST_DOTENV") })

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("CRASHLINE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("CRASHLINE_TEST_DOTENV = %q", got)
	}

	yaml := `
instance:
  id: ${CRASHLINE_TEST_DOTENV}
`
	cfg, err := Load(writeTempFile(t, yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Instance.ID != "from-file" {
		t.Errorf("Instance.ID = %q, want expansion from .env", cfg.Instance.ID)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: desk-1
api:
  ws_url: wss://casino.example.com/ws/crash
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Session.ReconnectBase", cfg.Session.ReconnectBase, DefaultReconnectBase},
		{"Session.ReconnectStep", cfg.Session.ReconnectStep, DefaultReconnectStep},
		{"Session.ReconnectJitter", cfg.Session.ReconnectJitter, DefaultReconnectJitter},
		{"Session.ReconnectCap", cfg.Session.ReconnectCap, DefaultReconnectCap},
		{"Session.DisconnectGrace", cfg.Session.DisconnectGrace, DefaultDisconnectGrace},
		{"Betting.MinStake", cfg.Betting.MinStake, DefaultMinStake},
		{"Betting.SubmitInterval", cfg.Betting.SubmitInterval, DefaultSubmitInterval},
		{"Betting.AutoCashoutCooldown", cfg.Betting.AutoCashoutCooldown, DefaultAutoCashoutCooldown},
		{"Feed.Capacity", cfg.Feed.Capacity, DefaultFeedCapacity},
		{"History.Capacity", cfg.History.Capacity, DefaultHistoryCapacity},
		{"Database.Audit.Port", cfg.Database.Audit.Port, DefaultDBPort},
		{"Writers.BatchSize", cfg.Writers.BatchSize, DefaultBatchSize},
		{"Metrics.Path", cfg.Metrics.Path, DefaultMetricsPath},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want default %v", tt.name, tt.got, tt.want)
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadAndValidate_Error(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: desk-1\n")

	if _, err := LoadAndValidate(path); err == nil {
		t.Fatal("expected error for missing ws_url")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func validConfig() ClientConfig {
	cfg := ClientConfig{
		Instance: InstanceConfig{ID: "test"},
		API:      APIConfig{WSURL: "wss://casino.example.com/ws/crash"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *ClientConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *ClientConfig) { c.API.WSURL = "" },
			wantErr: "api.ws_url is required",
		},
		{
			name:    "http ws url",
			mutate:  func(c *ClientConfig) { c.API.WSURL = "https://casino.example.com/ws" },
			wantErr: `api.ws_url must be a ws:// or wss:// url, got "https://casino.example.com/ws"`,
		},
		{
			name:    "cap below base",
			mutate:  func(c *ClientConfig) { c.Session.ReconnectCap = 100 * time.Millisecond },
			wantErr: "session.reconnect_cap (100ms) cannot be below reconnect_base (600ms)",
		},
		{
			name:    "max stake below min",
			mutate:  func(c *ClientConfig) { c.Betting.MinStake = 100; c.Betting.MaxStake = 50 },
			wantErr: "betting.max_stake (50) cannot be below min_stake (100)",
		},
		{
			name:    "negative feed capacity",
			mutate:  func(c *ClientConfig) { c.Feed.Capacity = -1 },
			wantErr: "feed.capacity must be >= 1",
		},
		{
			name:    "database enabled without host",
			mutate:  func(c *ClientConfig) { c.Database.Enabled = true },
			wantErr: "database.audit.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *ClientConfig) {
				c.Database.Enabled = true
				c.Database.Audit = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.audit.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "metrics without status",
			mutate:  func(c *ClientConfig) { c.Metrics.Enabled = true },
			wantErr: "metrics are served by the status server; enable status as well",
		},
		{
			name:    "valid config",
			mutate:  func(c *ClientConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
