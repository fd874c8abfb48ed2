package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestResolveConfigPathDefault(t *testing.T) {
	got := ResolveConfigPath("")
	if got == "" {
		t.Fatal("expected non-empty path")
	}
	if filepath.Base(got) != "config.yaml" {
		t.Fatalf("expected default config.yaml, got %s", got)
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("expected absolute path, got %s", got)
	}
}

func TestLoadDatabaseDSNEnvOverride(t *testing.T) {
	t.Setenv(EnvDBConnection, "postgres://env-wins")
	path := writeConfigFile(t, "database-dsn: postgres://file-loses\n")

	dsn, err := LoadDatabaseDSN(path)
	if err != nil {
		t.Fatalf("load dsn: %v", err)
	}
	if dsn != "postgres://env-wins" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestLoadDatabaseDSNFromFile(t *testing.T) {
	t.Setenv(EnvDBConnection, "")
	path := writeConfigFile(t, "database-dsn: postgres://top-level\n")

	dsn, err := LoadDatabaseDSN(path)
	if err != nil {
		t.Fatalf("load dsn: %v", err)
	}
	if dsn != "postgres://top-level" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestLoadDatabaseDSNNestedField(t *testing.T) {
	t.Setenv(EnvDBConnection, "")
	path := writeConfigFile(t, "database:\n  dsn: postgres://nested\n")

	dsn, err := LoadDatabaseDSN(path)
	if err != nil {
		t.Fatalf("load dsn: %v", err)
	}
	if dsn != "postgres://nested" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestLoadDatabaseDSNMissing(t *testing.T) {
	t.Setenv(EnvDBConnection, "")
	path := writeConfigFile(t, "jwt:\n  secret: abc\n")

	_, err := LoadDatabaseDSN(path)
	if !errors.Is(err, ErrMissingDatabaseDSN) {
		t.Fatalf("expected ErrMissingDatabaseDSN, got %v", err)
	}
}

func TestLoadJWTConfigDefaults(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvJWTExpiry, "")

	cfg, err := LoadJWTConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load jwt config: %v", err)
	}
	if cfg.Secret != "" {
		t.Fatalf("expected empty secret, got %q", cfg.Secret)
	}
	if cfg.Expiry != 24*time.Hour {
		t.Fatalf("expected default expiry, got %v", cfg.Expiry)
	}
}

func TestLoadJWTConfigEnvOverride(t *testing.T) {
	path := writeConfigFile(t, "jwt:\n  secret: from-file\n  expiry: 1h\n")
	t.Setenv(EnvJWTSecret, "from-env")
	t.Setenv(EnvJWTExpiry, "30m")

	cfg, err := LoadJWTConfig(path)
	if err != nil {
		t.Fatalf("load jwt config: %v", err)
	}
	if cfg.Secret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Secret)
	}
	if cfg.Expiry != 30*time.Minute {
		t.Fatalf("expected 30m expiry, got %v", cfg.Expiry)
	}
}

func TestLoadJWTConfigBadEnvExpiryIgnored(t *testing.T) {
	path := writeConfigFile(t, "jwt:\n  secret: s\n  expiry: 2h\n")
	t.Setenv(EnvJWTSecret, "")
	t.Setenv(EnvJWTExpiry, "not-a-duration")

	cfg, err := LoadJWTConfig(path)
	if err != nil {
		t.Fatalf("load jwt config: %v", err)
	}
	if cfg.Expiry != 2*time.Hour {
		t.Fatalf("expected file expiry to survive, got %v", cfg.Expiry)
	}
}

func TestLoadRedisConfigDefaults(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")

	cfg, err := LoadRedisConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load redis config: %v", err)
	}
	if cfg.Enabled {
		t.Fatal("expected redis disabled by default")
	}
	if cfg.Prefix != "courselab:rl" {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}
}

func TestLoadRedisConfigEnvAddrEnables(t *testing.T) {
	t.Setenv(EnvRedisAddr, "127.0.0.1:6379")

	cfg, err := LoadRedisConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load redis config: %v", err)
	}
	if !cfg.Enabled || cfg.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRedisConfigEnabledWithoutAddr(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")
	path := writeConfigFile(t, "redis:\n  enabled: true\n")

	if _, err := LoadRedisConfig(path); err == nil {
		t.Fatal("expected error when enabled without addr")
	}
}

func TestLoadRedisConfigFromFile(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")
	path := writeConfigFile(t, "redis:\n  enabled: true\n  addr: 10.0.0.5:6379\n  db: 2\n  prefix: custom:rl\n")

	cfg, err := LoadRedisConfig(path)
	if err != nil {
		t.Fatalf("load redis config: %v", err)
	}
	if !cfg.Enabled || cfg.Addr != "10.0.0.5:6379" || cfg.DB != 2 || cfg.Prefix != "custom:rl" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRateLimitConfig(t *testing.T) {
	path := writeConfigFile(t, "rate-limit:\n  cache-ttl: 10s\n  store-timeout: 250ms\n")

	cfg, err := LoadRateLimitConfig(path)
	if err != nil {
		t.Fatalf("load rate limit config: %v", err)
	}
	if cfg.CacheTTL != 10*time.Second {
		t.Fatalf("expected 10s cache ttl, got %v", cfg.CacheTTL)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms store timeout, got %v", cfg.StoreTimeout)
	}
}

func TestLoadRateLimitConfigNegativeClamped(t *testing.T) {
	path := writeConfigFile(t, "rate-limit:\n  cache-ttl: -5s\n")

	cfg, err := LoadRateLimitConfig(path)
	if err != nil {
		t.Fatalf("load rate limit config: %v", err)
	}
	if cfg.CacheTTL != 0 {
		t.Fatalf("expected negative ttl clamped to zero, got %v", cfg.CacheTTL)
	}
}
