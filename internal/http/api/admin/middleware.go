package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/courselab/courselab-api/internal/config"
	"github.com/courselab/courselab-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// adminAuthMiddleware verifies the admin session token and loads the admin
// record into the request context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenRaw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims := jwt.RegisteredClaims{}
		token, errParse := jwt.ParseWithClaims(tokenRaw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtCfg.Secret), nil
		})
		if errParse != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		adminID, errParseID := strconv.ParseUint(claims.Subject, 10, 64)
		if errParseID != nil || adminID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		errFind := db.WithContext(c.Request.Context()).
			Where("id = ? AND active = ?", adminID, true).
			Take(&admin).Error
		if errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown admin"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
