// Package front exposes the metered tenant-facing API surface.
package front

import (
	"github.com/courselab/courselab-api/internal/access"
	"github.com/courselab/courselab-api/internal/http/api/front/handlers"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the API-key authenticated tenant routes.
// Request endpoints and webhook endpoints meter against separate quota
// classes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, limiter *ratelimit.Middleware) {
	if r == nil || db == nil || limiter == nil {
		return
	}

	v1 := r.Group("/v1")
	v1.Use(access.APIKeyAuthMiddleware(db))

	metered := v1.Group("")
	metered.Use(limiter.Handler(ratelimit.ClassRequest))

	courseHandler := handlers.NewCourseHandler(db)
	metered.GET("/courses", courseHandler.List)
	metered.POST("/courses", courseHandler.Create)
	metered.GET("/courses/:id", courseHandler.Get)
	metered.GET("/courses/:id/assessments", courseHandler.ListAssessments)
	metered.POST("/courses/:id/assessments", courseHandler.CreateAssessment)

	webhooks := v1.Group("/webhooks")
	webhooks.Use(limiter.Handler(ratelimit.ClassWebhook))

	webhookHandler := handlers.NewWebhookHandler(db)
	webhooks.POST("/ingest", webhookHandler.Ingest)
}
