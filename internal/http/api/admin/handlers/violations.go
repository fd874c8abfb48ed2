package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultViolationPageSize = 50
	maxViolationPageSize     = 200
)

// ViolationHandler exposes the rate limit violation audit trail.
type ViolationHandler struct {
	db *gorm.DB
}

// NewViolationHandler constructs a ViolationHandler.
func NewViolationHandler(db *gorm.DB) *ViolationHandler {
	return &ViolationHandler{db: db}
}

// List returns violations, newest first, filterable by org and window.
func (h *ViolationHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.RateLimitViolation{})

	if rawOrgID := strings.TrimSpace(c.Query("org_id")); rawOrgID != "" {
		orgID, errParse := strconv.ParseUint(rawOrgID, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid org_id"})
			return
		}
		query = query.Where("org_id = ?", orgID)
	}
	if window := strings.ToLower(strings.TrimSpace(c.Query("window"))); window != "" {
		switch window {
		case "minute", "hour", "day":
			query = query.Where("limit_type = ?", window)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
	}

	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), defaultViolationPageSize)
	if pageSize > maxViolationPageSize {
		pageSize = maxViolationPageSize
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count violations failed"})
		return
	}

	var rows []models.RateLimitViolation
	if errFind := query.
		Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list violations failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{
			"id":                  row.ID,
			"org_id":              row.OrgID,
			"endpoint":            row.Endpoint,
			"method":              row.Method,
			"limit_type":          row.LimitType,
			"observed_count":      row.ObservedCount,
			"limit_value":         row.LimitValue,
			"client_ip":           row.ClientIP,
			"user_agent":          row.UserAgent,
			"retry_after_seconds": row.RetryAfterSeconds,
			"created_at":          row.CreatedAt.Unix(),
		}
		if row.APIKeyID != nil {
			entry["api_key_id"] = *row.APIKeyID
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{
		"violations": out,
		"total":      total,
		"page":       page,
		"page_size":  pageSize,
	})
}

func parsePositiveInt(raw string, fallback int) int {
	value, errParse := strconv.Atoi(strings.TrimSpace(raw))
	if errParse != nil || value <= 0 {
		return fallback
	}
	return value
}
