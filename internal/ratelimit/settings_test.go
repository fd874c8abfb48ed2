package ratelimit

import (
	"encoding/json"
	"testing"
	"time"

	internalsettings "github.com/courselab/courselab-api/internal/settings"
)

func TestLoadSettingsConfigDefaults(t *testing.T) {
	internalsettings.StoreDBConfig(time.Time{}, nil)

	cfg := LoadSettingsConfig()
	if cfg.RedisEnabled {
		t.Fatalf("expected redis disabled by default")
	}
	if cfg.RedisPrefix != internalsettings.DefaultRateLimitRedisPrefix {
		t.Fatalf("expected default prefix, got %q", cfg.RedisPrefix)
	}
}

func TestLoadSettingsConfigReadsSnapshot(t *testing.T) {
	internalsettings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		internalsettings.RateLimitRedisEnabledKey:  json.RawMessage(`true`),
		internalsettings.RateLimitRedisAddrKey:     json.RawMessage(`"127.0.0.1:6379"`),
		internalsettings.RateLimitRedisPasswordKey: json.RawMessage(`"secret"`),
		internalsettings.RateLimitRedisDBKey:       json.RawMessage(`3`),
		internalsettings.RateLimitRedisPrefixKey:   json.RawMessage(`"custom:rl"`),
	})
	t.Cleanup(func() { internalsettings.StoreDBConfig(time.Time{}, nil) })

	cfg := LoadSettingsConfig()
	if !cfg.RedisEnabled {
		t.Fatalf("expected redis enabled")
	}
	if cfg.RedisAddr != "127.0.0.1:6379" || cfg.RedisPassword != "secret" || cfg.RedisDB != 3 || cfg.RedisPrefix != "custom:rl" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	settings := cfg.RedisSettings()
	if !settings.Enabled || settings.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected manager settings %+v", settings)
	}
}

func TestLoadSettingsConfigToleratesStringValues(t *testing.T) {
	internalsettings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		internalsettings.RateLimitRedisEnabledKey: json.RawMessage(`"yes"`),
		internalsettings.RateLimitRedisDBKey:      json.RawMessage(`"5"`),
	})
	t.Cleanup(func() { internalsettings.StoreDBConfig(time.Time{}, nil) })

	cfg := LoadSettingsConfig()
	if !cfg.RedisEnabled {
		t.Fatalf("expected string 'yes' to parse as enabled")
	}
	if cfg.RedisDB != 5 {
		t.Fatalf("expected db 5, got %d", cfg.RedisDB)
	}
}

func TestRedisSettingsRequiresAddr(t *testing.T) {
	cfg := SettingsConfig{RedisEnabled: true}
	if cfg.RedisSettings().Enabled {
		t.Fatalf("expected enabled=false without an address")
	}
}
