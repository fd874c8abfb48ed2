package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var globalDBConfig atomic.Value

func init() {
	globalDBConfig.Store(dbConfigSnapshot{values: make(map[string]json.RawMessage)})
}

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	copied := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		copied[key] = append(json.RawMessage(nil), value...)
	}
	globalDBConfig.Store(dbConfigSnapshot{updatedAt: updatedAt.UTC(), values: copied})
}

// DBConfigValue returns the raw JSON value stored under key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	snap, ok := globalDBConfig.Load().(dbConfigSnapshot)
	if !ok {
		return nil, false
	}
	value, okValue := snap.values[key]
	return value, okValue
}

// DBConfigUpdatedAt returns the snapshot's latest settings timestamp.
func DBConfigUpdatedAt() time.Time {
	snap, ok := globalDBConfig.Load().(dbConfigSnapshot)
	if !ok {
		return time.Time{}
	}
	return snap.updatedAt
}
