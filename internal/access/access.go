// Package access authenticates API requests by organization API key. It is
// the auth collaborator in front of the rate limiter: an unresolvable
// tenant is a 401 here, never a 429 downstream.
package access

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"github.com/courselab/courselab-api/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	headerAuthorization = "Authorization"
	headerAPIKey        = "X-API-Key"
	bearerScheme        = "Bearer "
)

// APIKeyAuthMiddleware authenticates the request by API key and attaches
// the tenant identity for the rate limiter.
func APIKeyAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}

		var key models.APIKey
		errFind := db.WithContext(c.Request.Context()).
			Preload("Org").
			Where("key_hash = ? AND active = ?", security.HashAPIKey(token), true).
			Take(&key).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			log.WithError(errFind).Warn("access: api key lookup failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication unavailable"})
			return
		}
		if key.Org == nil || !key.Org.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "organization disabled"})
			return
		}

		touchLastUsed(db, key.ID)

		ratelimit.SetIdentity(c, ratelimit.Identity{
			OrgID:    key.OrgID,
			OrgSlug:  key.Org.Slug,
			APIKeyID: key.ID,
		})
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader(headerAuthorization)); header != "" {
		if strings.HasPrefix(header, bearerScheme) {
			return strings.TrimSpace(strings.TrimPrefix(header, bearerScheme))
		}
	}
	return strings.TrimSpace(c.GetHeader(headerAPIKey))
}

// touchLastUsed stamps the key off the request path; staleness is fine.
func touchLastUsed(db *gorm.DB, keyID uint64) {
	go func() {
		now := time.Now().UTC()
		if errUpdate := db.Model(&models.APIKey{}).
			Where("id = ?", keyID).
			Update("last_used_at", now).Error; errUpdate != nil {
			log.WithError(errUpdate).Warn("access: last used update failed")
		}
	}()
}
