package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.Presence.OfflineAfter != def.Presence.OfflineAfter {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.RateLimit.RegisterAttempts != 5 || cfg.RateLimit.RegisterWindow != time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`addr: ":9090"
log_level: warn
storage:
  driver: bolt
  bolt_path: /tmp/chat.bolt
presence:
  offline_after: 45s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WIRECHAT_LOG_LEVEL", "debug")
	t.Setenv("WIRECHAT_RATE_LIMIT_REDIS_ADDR", "localhost:6379")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("addr from file not applied: %s", cfg.Addr)
	}
	if cfg.Storage.Driver != "bolt" || cfg.Storage.BoltPath != "/tmp/chat.bolt" {
		t.Errorf("storage from file not applied: %+v", cfg.Storage)
	}
	if cfg.Presence.OfflineAfter != 45*time.Second {
		t.Errorf("expected 45s offline_after, got %v", cfg.Presence.OfflineAfter)
	}
	if cfg.Presence.SweepInterval != Default().Presence.SweepInterval {
		t.Errorf("unset key should keep default, got %v", cfg.Presence.SweepInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("env should override file, got %s", cfg.LogLevel)
	}
	if cfg.RateLimit.RedisAddr != "localhost:6379" {
		t.Errorf("nested env not applied: %q", cfg.RateLimit.RedisAddr)
	}
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", Storage: StorageConfig{Driver: "bolt"}})

	if cfg.Addr != ":1234" || cfg.Storage.Driver != "bolt" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != Default().ShutdownTimeout {
		t.Fatalf("zero override should not clobber: %v", cfg.ShutdownTimeout)
	}
}
