package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEFAULT_LANGUAGE", "")
	t.Setenv("TENANT_CACHE_TTL", "")
	t.Setenv("TENANT_DYNAMO_TABLE", "")
	t.Setenv("TENANT_INVALIDATION_QUEUE_URL", "")
	t.Setenv("ARCHETYPE_BUCKET", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DefaultLanguage != "en" {
		t.Fatalf("expected default language en, got %s", cfg.DefaultLanguage)
	}
	if cfg.TenantCacheTTL != 5*time.Minute {
		t.Fatalf("expected default tenant cache ttl, got %s", cfg.TenantCacheTTL)
	}
	if !cfg.AuditFallbacks {
		t.Fatalf("expected fallback auditing enabled by default")
	}
	if cfg.UsesAWS() {
		t.Fatalf("expected no AWS components by default")
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DEFAULT_LANGUAGE", " FR ")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("TENANT_CACHE_SIZE", "64")
	t.Setenv("TENANT_CACHE_TTL", "30s")
	t.Setenv("TENANT_DYNAMO_TABLE", "tenants")
	t.Setenv("AUDIT_FALLBACKS", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DefaultLanguage != "fr" {
		t.Fatalf("expected normalized language, got %q", cfg.DefaultLanguage)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.TenantCacheSize != 64 {
		t.Fatalf("expected cache size override, got %d", cfg.TenantCacheSize)
	}
	if cfg.TenantCacheTTL != 30*time.Second {
		t.Fatalf("expected cache ttl override, got %s", cfg.TenantCacheTTL)
	}
	if cfg.AuditFallbacks {
		t.Fatalf("expected fallback auditing disabled")
	}
	if !cfg.UsesAWS() {
		t.Fatalf("expected dynamo table to require AWS")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("PERSONA_TEST_DOTENV_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("PERSONA_TEST_DOTENV_PORT") })

	if _, err := LoadWithDotEnv(path); err != nil {
		t.Fatalf("LoadWithDotEnv: %v", err)
	}
	if got := os.Getenv("PERSONA_TEST_DOTENV_PORT"); got != "7070" {
		t.Fatalf("expected dotenv value loaded, got %q", got)
	}
}

func TestLoadWithDotEnvMissingFile(t *testing.T) {
	if _, err := LoadWithDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestLoadRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "")
	cfg := Load()
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 20 {
		t.Fatalf("expected default burst, got %d", cfg.RateLimitBurst)
	}
}
