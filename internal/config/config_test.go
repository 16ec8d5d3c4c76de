package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  url: https://api.example.com
  timeout: 5s
push:
  url: wss://push.example.com/duelos/{id}/ws
sync:
  pollInterval: 4s
log:
  level: debug
`)
	t.Setenv("DUEL_API_TOKEN", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.URL != "https://api.example.com" || cfg.API.Token != "secret" {
		t.Fatalf("unexpected api config: %+v", cfg.API)
	}
	if cfg.Push.Transport != PushWebsocket {
		t.Fatalf("expected websocket transport inferred from push.url, got %q", cfg.Push.Transport)
	}
	if got := Duration(cfg.Sync.PollInterval, 8*time.Second); got != 4*time.Second {
		t.Fatalf("expected 4s poll interval, got %s", got)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
api:
  url: https://api.example.com
push:
  transport: redis
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for redis transport without redis.addr")
	}

	path = writeConfig(t, `
api:
  url: not a url
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid api url")
	}
}

func TestLoadWithoutFileUsesEnv(t *testing.T) {
	t.Setenv("DUEL_API_URL", "http://localhost:3000")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Push.Transport != PushNone {
		t.Fatalf("expected poll-only transport, got %q", cfg.Push.Transport)
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %s", got)
	}
	if got := Duration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid, got %s", got)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
