package settings

import (
	"encoding/json"
	"testing"
	"time"
)

func resetSnapshot(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		StoreDBConfig(time.Time{}, nil)
	})
}

func TestStoreDBConfigRoundTrip(t *testing.T) {
	resetSnapshot(t)

	updatedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	StoreDBConfig(updatedAt, map[string]json.RawMessage{
		SiteNameKey: json.RawMessage(`"CourseLab"`),
	})

	value, ok := DBConfigValue(SiteNameKey)
	if !ok {
		t.Fatalf("expected %s to be present", SiteNameKey)
	}
	if string(value) != `"CourseLab"` {
		t.Fatalf("unexpected value %s", value)
	}
	if got := DBConfigUpdatedAt(); !got.Equal(updatedAt) {
		t.Fatalf("expected updated at %v, got %v", updatedAt, got)
	}
}

func TestDBConfigValueMissing(t *testing.T) {
	resetSnapshot(t)

	StoreDBConfig(time.Now(), nil)
	if _, ok := DBConfigValue("NO_SUCH_KEY"); ok {
		t.Fatal("expected missing key")
	}
	if _, ok := DBConfigValue(""); ok {
		t.Fatal("expected empty key to miss")
	}
}

func TestStoreDBConfigTrimsKeys(t *testing.T) {
	resetSnapshot(t)

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		"  " + RateLimitRedisAddrKey + " ": json.RawMessage(`"127.0.0.1:6379"`),
		"   ":                              json.RawMessage(`"dropped"`),
	})

	value, ok := DBConfigValue(RateLimitRedisAddrKey)
	if !ok {
		t.Fatalf("expected trimmed key %s to be present", RateLimitRedisAddrKey)
	}
	if string(value) != `"127.0.0.1:6379"` {
		t.Fatalf("unexpected value %s", value)
	}
}

func TestStoreDBConfigCopiesValues(t *testing.T) {
	resetSnapshot(t)

	raw := json.RawMessage(`"original"`)
	StoreDBConfig(time.Now(), map[string]json.RawMessage{SiteNameKey: raw})

	copy(raw, []byte(`"mutated!"`))

	value, ok := DBConfigValue(SiteNameKey)
	if !ok {
		t.Fatalf("expected %s to be present", SiteNameKey)
	}
	if string(value) != `"original"` {
		t.Fatalf("snapshot aliased caller buffer: %s", value)
	}
}

func TestStoreDBConfigReplacesSnapshot(t *testing.T) {
	resetSnapshot(t)

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		RateLimitRedisEnabledKey: json.RawMessage(`true`),
	})
	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		RateLimitRedisDBKey: json.RawMessage(`2`),
	})

	if _, ok := DBConfigValue(RateLimitRedisEnabledKey); ok {
		t.Fatal("expected old snapshot keys to be gone")
	}
	if _, ok := DBConfigValue(RateLimitRedisDBKey); !ok {
		t.Fatal("expected new snapshot key")
	}
}
