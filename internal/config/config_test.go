package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Errorf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.Publish.TimesPerDay != 10 || cfg.Publish.SeparationMinutes != 30 {
		t.Errorf("publish defaults = %d/%d, want 10/30", cfg.Publish.TimesPerDay, cfg.Publish.SeparationMinutes)
	}
	if cfg.Limits.MaxChannelsPerAccount != 10 {
		t.Errorf("MaxChannelsPerAccount = %d, want 10", cfg.Limits.MaxChannelsPerAccount)
	}
	if cfg.OperationTimeout() != 120*time.Second {
		t.Errorf("OperationTimeout = %v, want 120s", cfg.OperationTimeout())
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tennel.yaml")
	data := `
bind_addr: ":9090"
db_path: custom.db
timezone: America/New_York
publish:
  times_per_day: 4
  separation_minutes: 90
telegram:
  gateway_url: http://localhost:9000
content:
  base_url: https://api.example.com/v1/chat/completions
  api_key: secret
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != ":9090" || cfg.DBPath != "custom.db" {
		t.Errorf("cfg = %q %q", cfg.BindAddr, cfg.DBPath)
	}
	if cfg.Publish.TimesPerDay != 4 || cfg.Publish.SeparationMinutes != 90 {
		t.Errorf("publish = %d/%d, want 4/90", cfg.Publish.TimesPerDay, cfg.Publish.SeparationMinutes)
	}
	if cfg.Telegram.GatewayURL != "http://localhost:9000" {
		t.Errorf("gateway = %q", cfg.Telegram.GatewayURL)
	}
	if cfg.Content.APIKey != "secret" {
		t.Errorf("api key = %q", cfg.Content.APIKey)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("location = %v", cfg.Location())
	}
	// Untouched sections keep defaults.
	if cfg.Limits.MaxChannelsPerAccount != 10 {
		t.Errorf("MaxChannelsPerAccount = %d, want default 10", cfg.Limits.MaxChannelsPerAccount)
	}
}

func TestProxyURL(t *testing.T) {
	if u := (ProxyConfig{}).URL(); u != nil {
		t.Fatalf("disabled proxy URL = %v, want nil", u)
	}
	if u := (ProxyConfig{Addr: "127.0.0.1:1080"}).URL(); u != nil {
		t.Fatalf("proxy with addr but not enabled URL = %v, want nil", u)
	}

	u := (ProxyConfig{Enabled: true, Addr: "127.0.0.1:1080", Username: "u", Password: "p"}).URL()
	if u == nil {
		t.Fatal("enabled proxy URL = nil")
	}
	if u.String() != "socks5://u:p@127.0.0.1:1080" {
		t.Fatalf("proxy URL = %q", u.String())
	}

	bare := (ProxyConfig{Enabled: true, Addr: "127.0.0.1:1080"}).URL()
	if bare.String() != "socks5://127.0.0.1:1080" {
		t.Fatalf("credential-free proxy URL = %q", bare.String())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TENNEL_BIND_ADDR", ":7070")
	t.Setenv("TENNEL_TIMES_PER_DAY", "6")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != ":7070" {
		t.Errorf("BindAddr = %q, want env override", cfg.BindAddr)
	}
	if cfg.Publish.TimesPerDay != 6 {
		t.Errorf("TimesPerDay = %d, want 6", cfg.Publish.TimesPerDay)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tennel.yaml")
	data := `
publish:
  times_per_day: -1
  separation_minutes: 0
operation_timeout_seconds: -5
timezone: Not/AZone
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Publish.TimesPerDay != 10 || cfg.Publish.SeparationMinutes != 30 {
		t.Errorf("publish = %d/%d, want defaults restored", cfg.Publish.TimesPerDay, cfg.Publish.SeparationMinutes)
	}
	if cfg.OperationTimeoutSeconds != 120 {
		t.Errorf("timeout = %d, want 120", cfg.OperationTimeoutSeconds)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("bad timezone should fall back to UTC, got %v", cfg.Location())
	}
}
