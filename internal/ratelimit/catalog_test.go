package ratelimit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestCatalogResolveBuiltins(t *testing.T) {
	catalog := NewCatalog()

	cfg, err := catalog.Resolve("free")
	if err != nil {
		t.Fatalf("resolve free: %v", err)
	}
	if cfg.RequestsPerMinute != 60 || cfg.RequestsPerHour != 1000 || cfg.RequestsPerDay != 10000 {
		t.Fatalf("unexpected free preset: %+v", cfg)
	}

	if _, err := catalog.Resolve("PRO"); err != nil {
		t.Fatalf("expected case-insensitive resolve, got %v", err)
	}
	if _, err := catalog.Resolve("platinum"); !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
	if _, err := catalog.Resolve(""); !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound for empty name, got %v", err)
	}
}

func TestCatalogDefaultIsFree(t *testing.T) {
	catalog := NewCatalog()
	cfg := catalog.Default()
	if cfg.Tier != "free" {
		t.Fatalf("expected free default, got %q", cfg.Tier)
	}
	if !cfg.EnforceHardLimits {
		t.Fatalf("expected free preset to enforce hard limits")
	}
}

func TestCatalogReloadFromDBMergesRows(t *testing.T) {
	conn := openTestDB(t)

	row := models.RateLimitTier{
		Name:              "startup",
		RequestsPerMinute: 120,
		RequestsPerHour:   2000,
		RequestsPerDay:    20000,
		WebhooksPerMinute: 20,
		WebhooksPerHour:   200,
		EnforceHardLimits: true,
		IsEnabled:         true,
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed tier: %v", errCreate)
	}
	disabled := models.RateLimitTier{Name: "hidden", RequestsPerMinute: 5, IsEnabled: false}
	if errCreate := conn.Create(&disabled).Error; errCreate != nil {
		t.Fatalf("seed disabled tier: %v", errCreate)
	}

	catalog := NewCatalog()
	if errReload := catalog.ReloadFromDB(context.Background(), conn); errReload != nil {
		t.Fatalf("reload: %v", errReload)
	}

	cfg, err := catalog.Resolve("startup")
	if err != nil {
		t.Fatalf("resolve startup: %v", err)
	}
	if cfg.RequestsPerMinute != 120 {
		t.Fatalf("expected merged row, got %+v", cfg)
	}
	if _, err := catalog.Resolve("hidden"); !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("expected disabled tier to stay out, got %v", err)
	}
	// Builtins survive the merge.
	if _, err := catalog.Resolve("free"); err != nil {
		t.Fatalf("resolve free after reload: %v", err)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "courselab-test.db")
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(
		&models.Organization{},
		&models.APIKey{},
		&models.RateLimitTier{},
		&models.OrgRateLimit{},
		&models.RateLimitCounter{},
		&models.RateLimitViolation{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}
