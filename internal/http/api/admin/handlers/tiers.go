package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TierHandler manages admin CRUD endpoints for rate limit tiers.
type TierHandler struct {
	db      *gorm.DB             // Database handle for tier records.
	catalog *ratelimit.Catalog   // Catalog to reload after writes.
}

// NewTierHandler constructs a tier handler.
func NewTierHandler(db *gorm.DB, catalog *ratelimit.Catalog) *TierHandler {
	return &TierHandler{db: db, catalog: catalog}
}

// tierRequest captures the payload for creating or updating a tier.
type tierRequest struct {
	Name                  string          `json:"name"`                    // Tier name.
	Description           string          `json:"description"`             // Operator notes.
	RequestsPerMinute     int             `json:"requests_per_minute"`     // Minute quota.
	RequestsPerHour       int             `json:"requests_per_hour"`       // Hour quota.
	RequestsPerDay        int             `json:"requests_per_day"`        // Day quota.
	BurstAllowance        int             `json:"burst_allowance"`         // Minute-window headroom.
	WebhooksPerMinute     int             `json:"webhooks_per_minute"`     // Webhook minute quota.
	WebhooksPerHour       int             `json:"webhooks_per_hour"`       // Webhook hour quota.
	MaxConcurrentRequests int             `json:"max_concurrent_requests"` // In-flight cap.
	EnforceHardLimits     *bool           `json:"enforce_hard_limits"`     // Nil defaults to true.
	Features              json.RawMessage `json:"features"`                // Feature list payload.
	SortOrder             int             `json:"sort_order"`              // Display order.
	IsEnabled             *bool           `json:"is_enabled"`              // Nil defaults to true.
}

func (body tierRequest) validate() (string, bool) {
	name := strings.ToLower(strings.TrimSpace(body.Name))
	if name == "" {
		return "", false
	}
	if body.RequestsPerMinute < 0 || body.RequestsPerHour < 0 || body.RequestsPerDay < 0 ||
		body.BurstAllowance < 0 || body.WebhooksPerMinute < 0 || body.WebhooksPerHour < 0 ||
		body.MaxConcurrentRequests < 0 {
		return "", false
	}
	return name, true
}

func normalizeTierFeatures(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON([]byte("[]")), nil
	}
	var features []string
	if errUnmarshal := json.Unmarshal(raw, &features); errUnmarshal != nil {
		return nil, errors.New("invalid features")
	}
	cleaned := make([]string, 0, len(features))
	for _, feature := range features {
		if trimmed := strings.TrimSpace(feature); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	rawFeatures, errMarshal := json.Marshal(cleaned)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(rawFeatures), nil
}

// Create adds a tier.
func (h *TierHandler) Create(c *gin.Context) {
	var body tierRequest
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name, okValidate := body.validate()
	if !okValidate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return
	}
	features, errFeatures := normalizeTierFeatures(body.Features)
	if errFeatures != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
		return
	}

	now := time.Now().UTC()
	row := models.RateLimitTier{
		Name:                  name,
		Description:           strings.TrimSpace(body.Description),
		RequestsPerMinute:     body.RequestsPerMinute,
		RequestsPerHour:       body.RequestsPerHour,
		RequestsPerDay:        body.RequestsPerDay,
		BurstAllowance:        body.BurstAllowance,
		WebhooksPerMinute:     body.WebhooksPerMinute,
		WebhooksPerHour:       body.WebhooksPerHour,
		MaxConcurrentRequests: body.MaxConcurrentRequests,
		EnforceHardLimits:     body.EnforceHardLimits == nil || *body.EnforceHardLimits,
		Features:              features,
		SortOrder:             body.SortOrder,
		IsEnabled:             body.IsEnabled == nil || *body.IsEnabled,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create tier failed"})
		return
	}
	h.reloadCatalog(c)
	c.JSON(http.StatusCreated, tierResponse(row))
}

// List returns all tiers ordered for display.
func (h *TierHandler) List(c *gin.Context) {
	var rows []models.RateLimitTier
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("sort_order asc, id asc").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tiers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, tierResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{"tiers": out})
}

// Update rewrites a tier.
func (h *TierHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body tierRequest
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name, okValidate := body.validate()
	if !okValidate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return
	}
	features, errFeatures := normalizeTierFeatures(body.Features)
	if errFeatures != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
		return
	}

	var row models.RateLimitTier
	errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load tier failed"})
		return
	}

	row.Name = name
	row.Description = strings.TrimSpace(body.Description)
	row.RequestsPerMinute = body.RequestsPerMinute
	row.RequestsPerHour = body.RequestsPerHour
	row.RequestsPerDay = body.RequestsPerDay
	row.BurstAllowance = body.BurstAllowance
	row.WebhooksPerMinute = body.WebhooksPerMinute
	row.WebhooksPerHour = body.WebhooksPerHour
	row.MaxConcurrentRequests = body.MaxConcurrentRequests
	row.EnforceHardLimits = body.EnforceHardLimits == nil || *body.EnforceHardLimits
	row.Features = features
	row.SortOrder = body.SortOrder
	row.IsEnabled = body.IsEnabled == nil || *body.IsEnabled
	row.UpdatedAt = time.Now().UTC()

	if errSave := h.db.WithContext(c.Request.Context()).Save(&row).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update tier failed"})
		return
	}
	h.reloadCatalog(c)
	c.JSON(http.StatusOK, tierResponse(row))
}

// Delete removes a tier.
func (h *TierHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result := h.db.WithContext(c.Request.Context()).Delete(&models.RateLimitTier{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete tier failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.reloadCatalog(c)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *TierHandler) reloadCatalog(c *gin.Context) {
	if h.catalog == nil {
		return
	}
	if errReload := h.catalog.ReloadFromDB(c.Request.Context(), h.db); errReload != nil {
		log.WithError(errReload).Warn("admin: catalog reload failed")
	}
}

func tierResponse(row models.RateLimitTier) gin.H {
	return gin.H{
		"id":                      row.ID,
		"name":                    row.Name,
		"description":             row.Description,
		"requests_per_minute":     row.RequestsPerMinute,
		"requests_per_hour":       row.RequestsPerHour,
		"requests_per_day":        row.RequestsPerDay,
		"burst_allowance":         row.BurstAllowance,
		"webhooks_per_minute":     row.WebhooksPerMinute,
		"webhooks_per_hour":       row.WebhooksPerHour,
		"max_concurrent_requests": row.MaxConcurrentRequests,
		"enforce_hard_limits":     row.EnforceHardLimits,
		"features":                row.Features,
		"sort_order":              row.SortOrder,
		"is_enabled":              row.IsEnabled,
	}
}
