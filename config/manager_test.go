package config

import (
	"testing"
	"time"
)

func TestLoadWithAliasEnv(t *testing.T) {
	t.Setenv("APP_CONFIG", "config/does-not-exist.yaml")
	t.Setenv("MEDROTA_DB_DRIVER", "postgres")
	t.Setenv("MEDROTA_DB_URL", "postgres://localhost/test")
	t.Setenv("MEDROTA_LISTEN_ADDR", "127.0.0.1:8080")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "dev")
	t.Setenv("PEPPER", "pepper")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9090" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.Pepper != "pepper" {
		t.Fatalf("PEPPER alias not applied")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &AppConfig{}
	normalizeConfig(cfg)
	if cfg.Lockout.MaxFailures != 5 {
		t.Fatalf("expected default max_failures 5, got %d", cfg.Lockout.MaxFailures)
	}
	if cfg.Lockout.Duration != 30*time.Minute {
		t.Fatalf("expected default lockout duration 30m, got %s", cfg.Lockout.Duration)
	}
	if cfg.Lockout.AttemptWindow != 15*time.Minute {
		t.Fatalf("expected default attempt window 15m, got %s", cfg.Lockout.AttemptWindow)
	}
	if cfg.Lockout.AddressMaxFailures != 10 {
		t.Fatalf("expected default address threshold 10, got %d", cfg.Lockout.AddressMaxFailures)
	}
	if cfg.Cache.PermissionTTL != 5*time.Minute {
		t.Fatalf("expected default permission ttl 5m, got %s", cfg.Cache.PermissionTTL)
	}
	if cfg.Cache.ProfileTTL != 10*time.Minute {
		t.Fatalf("expected default profile ttl 10m, got %s", cfg.Cache.ProfileTTL)
	}
	if cfg.EffectiveSessionTTL() != 7*24*time.Hour {
		t.Fatalf("expected default session ttl 7d, got %s", cfg.EffectiveSessionTTL())
	}
}
