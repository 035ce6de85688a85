package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ALLOWED_ORIGIN", "DATA_DIR", "REPORTS_DIR", "EXPIRY_WARNING_DAYS", "AUTH_SECRET", "ACCESS_TOKEN_TTL_MINUTES", "ADMIN_USERNAME", "ADMIN_PASSWORD"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("want default port 8080, got %s", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address: %s", cfg.Address())
	}
	if cfg.DataDir != "data" || cfg.ReportsDir != filepath.Join("data", "reports") {
		t.Fatalf("unexpected dirs: %s %s", cfg.DataDir, cfg.ReportsDir)
	}
	if cfg.DefaultDBPath() != filepath.Join("data", "inventory.db") {
		t.Fatalf("unexpected default db path: %s", cfg.DefaultDBPath())
	}
	if cfg.ExpiryWarningDays != 15 {
		t.Fatalf("want default expiry window 15, got %d", cfg.ExpiryWarningDays)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("want default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.AdminUsername != "admin" {
		t.Fatalf("want default admin username, got %s", cfg.AdminUsername)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DIR", "/var/lib/gudangku")
	t.Setenv("REPORTS_DIR", "/srv/reports")
	t.Setenv("EXPIRY_WARNING_DAYS", "30")
	t.Setenv("AUTH_SECRET", "  super-secret  ")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("want port 9090, got %s", cfg.Port)
	}
	if cfg.ReportsDir != "/srv/reports" {
		t.Fatalf("want explicit reports dir, got %s", cfg.ReportsDir)
	}
	if cfg.DefaultDBPath() != filepath.Join("/var/lib/gudangku", "inventory.db") {
		t.Fatalf("unexpected default db path: %s", cfg.DefaultDBPath())
	}
	if cfg.ExpiryWarningDays != 30 {
		t.Fatalf("want expiry window 30, got %d", cfg.ExpiryWarningDays)
	}
	if cfg.AuthSecret != "super-secret" {
		t.Fatalf("secret must be trimmed, got %q", cfg.AuthSecret)
	}
}

func TestLoadRejectsGarbageNumbers(t *testing.T) {
	t.Setenv("EXPIRY_WARNING_DAYS", "soon")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.ExpiryWarningDays != 15 {
		t.Fatalf("bad expiry value must fall back to 15, got %d", cfg.ExpiryWarningDays)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("bad TTL must fall back to 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
