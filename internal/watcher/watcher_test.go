package watcher

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/ratelimit"
	internalsettings "github.com/courselab/courselab-api/internal/settings"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "courselab-test.db")
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	errMigrate := conn.AutoMigrate(
		&models.Setting{},
		&models.Organization{},
		&models.OrgRateLimit{},
		&models.RateLimitTier{},
	)
	if errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return conn
}

func resetSnapshot(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		internalsettings.StoreDBConfig(time.Time{}, nil)
	})
}

func TestPollSettingsLoadsSnapshot(t *testing.T) {
	resetSnapshot(t)
	conn := openTestDB(t)

	row := models.Setting{Key: internalsettings.SiteNameKey, Value: datatypes.JSON(`"CourseLab"`)}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed setting: %v", errCreate)
	}

	w := New(conn, nil, nil, 0)
	w.pollSettings(context.Background(), true)

	value, ok := internalsettings.DBConfigValue(internalsettings.SiteNameKey)
	if !ok {
		t.Fatal("expected snapshot to contain the seeded setting")
	}
	if string(value) != `"CourseLab"` {
		t.Fatalf("unexpected value %s", value)
	}
}

func TestPollSettingsDetectsChange(t *testing.T) {
	resetSnapshot(t)
	conn := openTestDB(t)

	row := models.Setting{Key: internalsettings.RateLimitRedisAddrKey, Value: datatypes.JSON(`"old:6379"`)}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed setting: %v", errCreate)
	}

	w := New(conn, nil, nil, 0)
	w.pollSettings(context.Background(), true)

	// Push the timestamp forward explicitly so change detection cannot miss
	// a same-instant rewrite.
	future := time.Now().UTC().Add(time.Minute)
	errUpdate := conn.Model(&models.Setting{}).
		Where("key = ?", internalsettings.RateLimitRedisAddrKey).
		Updates(map[string]any{"value": datatypes.JSON(`"new:6379"`), "updated_at": future}).Error
	if errUpdate != nil {
		t.Fatalf("update setting: %v", errUpdate)
	}

	w.pollSettings(context.Background(), false)

	value, ok := internalsettings.DBConfigValue(internalsettings.RateLimitRedisAddrKey)
	if !ok {
		t.Fatal("expected snapshot entry")
	}
	if string(value) != `"new:6379"` {
		t.Fatalf("expected refreshed value, got %s", value)
	}
}

func TestPollSettingsEmptyTable(t *testing.T) {
	resetSnapshot(t)
	conn := openTestDB(t)

	internalsettings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		internalsettings.SiteNameKey: json.RawMessage(`"stale"`),
	})

	w := New(conn, nil, nil, 0)
	w.pollSettings(context.Background(), true)

	if _, ok := internalsettings.DBConfigValue(internalsettings.SiteNameKey); ok {
		t.Fatal("expected forced poll of empty table to clear the snapshot")
	}
}

func TestPollTiersReloadsCatalog(t *testing.T) {
	conn := openTestDB(t)

	row := models.RateLimitTier{
		Name:              "startup",
		RequestsPerMinute: 120,
		RequestsPerHour:   2000,
		RequestsPerDay:    20000,
		IsEnabled:         true,
		EnforceHardLimits: true,
		Features:          datatypes.JSON(`[]`),
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed tier: %v", errCreate)
	}

	catalog := ratelimit.NewCatalog()
	w := New(conn, catalog, nil, 0)
	w.pollTiers(context.Background(), true)

	cfg, err := catalog.Resolve("startup")
	if err != nil {
		t.Fatalf("resolve startup tier: %v", err)
	}
	if cfg.RequestsPerMinute != 120 {
		t.Fatalf("unexpected tier config %+v", cfg)
	}
}

func TestPollOverridesInvalidatesResolverCache(t *testing.T) {
	conn := openTestDB(t)

	org := models.Organization{Name: "Acme", Slug: "acme", Tier: "free", Active: true}
	if errCreate := conn.Create(&org).Error; errCreate != nil {
		t.Fatalf("seed org: %v", errCreate)
	}
	override := models.OrgRateLimit{OrgID: org.ID, RequestsPerMinute: 5, IsEnabled: true, EnforceHardLimits: true}
	if errCreate := conn.Create(&override).Error; errCreate != nil {
		t.Fatalf("seed override: %v", errCreate)
	}

	resolver := ratelimit.NewResolver(ratelimit.NewGormConfigStore(conn), ratelimit.NewCatalog(), time.Hour, nil)
	if cfg := resolver.Resolve(context.Background(), org.ID); cfg.RequestsPerMinute != 5 {
		t.Fatalf("expected cached override config, got %+v", cfg)
	}

	w := New(conn, nil, resolver, 0)
	w.overridesSeenAt = time.Now().UTC().Add(-time.Hour)
	w.orgsSeenAt = w.overridesSeenAt

	future := time.Now().UTC().Add(time.Minute)
	errUpdate := conn.Model(&models.OrgRateLimit{}).
		Where("org_id = ?", org.ID).
		Updates(map[string]any{"requests_per_minute": 9, "updated_at": future}).Error
	if errUpdate != nil {
		t.Fatalf("update override: %v", errUpdate)
	}

	w.pollOverrides(context.Background())

	if cfg := resolver.Resolve(context.Background(), org.ID); cfg.RequestsPerMinute != 9 {
		t.Fatalf("expected fresh override config after invalidation, got %+v", cfg)
	}
}
