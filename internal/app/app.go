// Package app assembles the server: database, rate limiter, watcher, and
// the HTTP API surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/courselab/courselab-api/internal/config"
	"github.com/courselab/courselab-api/internal/db"
	"github.com/courselab/courselab-api/internal/http/api/admin"
	"github.com/courselab/courselab-api/internal/http/api/front"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"github.com/courselab/courselab-api/internal/watcher"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// counterPruneInterval controls how often expired counter rows are removed.
const counterPruneInterval = 5 * time.Minute

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errBootstrap := EnsureBootstrapAdmin(conn); errBootstrap != nil {
		return errBootstrap
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	redisConfig, errRedis := config.LoadRedisConfig(configPath)
	if errRedis != nil {
		return errRedis
	}
	limiterConfig, _ := config.LoadRateLimitConfig(configPath)

	catalog := ratelimit.NewCatalog()
	if errReload := catalog.ReloadFromDB(ctx, conn); errReload != nil {
		log.WithError(errReload).Warn("app: tier catalog reload failed, using builtin presets")
	}
	resolver := ratelimit.NewResolver(ratelimit.NewGormConfigStore(conn), catalog, limiterConfig.CacheTTL, nil)

	primary := ratelimit.NewGormStore(conn)
	manager := ratelimit.NewManager(redisSettingsProvider(redisConfig), primary, nil, nil)
	checker := ratelimit.NewChecker(resolver, manager, limiterConfig.StoreTimeout, nil)
	recorder := ratelimit.NewRecorder(ratelimit.NewGormAuditSink(conn))
	limiter := ratelimit.NewMiddleware(checker, manager, recorder, nil)

	go watcher.New(conn, catalog, resolver, 0).Run(ctx)
	go pruneCounters(ctx, primary)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	admin.RegisterAdminRoutes(engine, conn, jwtConfig, catalog, resolver)
	front.RegisterFrontRoutes(engine, conn, limiter)

	if defaultPort <= 0 {
		defaultPort = 8318
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", defaultPort),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Infof("listening on %s (config=%s)", server.Addr, configPath)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// redisSettingsProvider prefers DB-backed settings; the config file is the
// fallback when no operator has stored a Redis address yet.
func redisSettingsProvider(fileConfig config.RedisConfig) ratelimit.SettingsProvider {
	return func() ratelimit.RedisSettings {
		if snapshot := ratelimit.LoadSettingsConfig(); snapshot.RedisEnabled {
			return snapshot.RedisSettings()
		}
		return ratelimit.RedisSettings{
			Enabled:  fileConfig.Enabled,
			Addr:     fileConfig.Addr,
			Password: fileConfig.Password,
			DB:       fileConfig.DB,
			Prefix:   fileConfig.Prefix,
		}
	}
}

// pruneCounters removes dead counter rows on a fixed interval.
func pruneCounters(ctx context.Context, store *ratelimit.GormStore) {
	ticker := time.NewTicker(counterPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if errPrune := store.PruneExpired(pruneCtx, time.Now()); errPrune != nil {
				log.WithError(errPrune).Warn("app: prune expired counters failed")
			}
			cancel()
		}
	}
}
