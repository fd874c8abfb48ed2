// Package admin exposes the operator management API: tier and override
// administration, API key issuance, and the violation audit views.
package admin

import (
	"github.com/courselab/courselab-api/internal/config"
	"github.com/courselab/courselab-api/internal/http/api/admin/handlers"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"github.com/courselab/courselab-api/internal/usage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, catalog *ratelimit.Catalog, resolver *ratelimit.Resolver) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	tierHandler := handlers.NewTierHandler(db, catalog)
	authed.POST("/tiers", tierHandler.Create)
	authed.GET("/tiers", tierHandler.List)
	authed.PUT("/tiers/:id", tierHandler.Update)
	authed.DELETE("/tiers/:id", tierHandler.Delete)

	orgHandler := handlers.NewOrgHandler(db, resolver)
	authed.POST("/orgs", orgHandler.Create)
	authed.GET("/orgs", orgHandler.List)
	authed.GET("/orgs/:id", orgHandler.Get)
	authed.PUT("/orgs/:id", orgHandler.Update)
	authed.POST("/orgs/:id/disable", orgHandler.Disable)
	authed.POST("/orgs/:id/enable", orgHandler.Enable)
	authed.GET("/orgs/:id/rate-limit", orgHandler.GetOverride)
	authed.PUT("/orgs/:id/rate-limit", orgHandler.SetOverride)
	authed.DELETE("/orgs/:id/rate-limit", orgHandler.ClearOverride)

	usageHandler := handlers.NewUsageHandler(usage.NewReporter(db, resolver, nil))
	authed.GET("/orgs/:id/usage", usageHandler.OrgUsage)

	settingHandler := handlers.NewSettingHandler(db)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)

	apiKeyHandler := handlers.NewAPIKeyHandler(db)
	authed.POST("/orgs/:id/api-keys", apiKeyHandler.Create)
	authed.GET("/orgs/:id/api-keys", apiKeyHandler.List)
	authed.DELETE("/api-keys/:id", apiKeyHandler.Revoke)

	violationHandler := handlers.NewViolationHandler(db)
	authed.GET("/violations", violationHandler.List)
}
