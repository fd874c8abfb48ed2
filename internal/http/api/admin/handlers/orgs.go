package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/courselab/courselab-api/internal/db"
	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrgHandler manages admin endpoints for organizations and their rate
// limit overrides.
type OrgHandler struct {
	db       *gorm.DB
	resolver *ratelimit.Resolver // Cache to invalidate after quota changes.
}

// NewOrgHandler constructs an OrgHandler.
func NewOrgHandler(conn *gorm.DB, resolver *ratelimit.Resolver) *OrgHandler {
	return &OrgHandler{db: conn, resolver: resolver}
}

// Create adds an organization.
func (h *OrgHandler) Create(c *gin.Context) {
	// body holds the create request payload.
	var body struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
		Tier string `json:"tier"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if name == "" || slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name or slug"})
		return
	}
	tier := strings.ToLower(strings.TrimSpace(body.Tier))
	if tier == "" {
		tier = ratelimit.DefaultTier
	}

	now := time.Now().UTC()
	row := models.Organization{
		Name:      name,
		Slug:      slug,
		Tier:      tier,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create org failed"})
		return
	}
	c.JSON(http.StatusCreated, orgResponse(row))
}

// List returns organizations, optionally filtered by name.
func (h *OrgHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Organization{})
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}
	var rows []models.Organization
	if errFind := query.Order("id asc").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list orgs failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, orgResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{"orgs": out})
}

// Get returns one organization.
func (h *OrgHandler) Get(c *gin.Context) {
	row, okLoad := h.loadOrg(c)
	if !okLoad {
		return
	}
	c.JSON(http.StatusOK, orgResponse(row))
}

// Update rewrites an organization's name and tier.
func (h *OrgHandler) Update(c *gin.Context) {
	row, okLoad := h.loadOrg(c)
	if !okLoad {
		return
	}
	// body holds the update request payload.
	var body struct {
		Name string `json:"name"`
		Tier string `json:"tier"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if name := strings.TrimSpace(body.Name); name != "" {
		row.Name = name
	}
	if tier := strings.ToLower(strings.TrimSpace(body.Tier)); tier != "" {
		row.Tier = tier
	}
	row.UpdatedAt = time.Now().UTC()
	if errSave := h.db.WithContext(c.Request.Context()).Save(&row).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update org failed"})
		return
	}
	h.invalidate(row.ID)
	c.JSON(http.StatusOK, orgResponse(row))
}

// Disable blocks an organization's API access.
func (h *OrgHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// Enable restores an organization's API access.
func (h *OrgHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

func (h *OrgHandler) setActive(c *gin.Context, active bool) {
	row, okLoad := h.loadOrg(c)
	if !okLoad {
		return
	}
	row.Active = active
	row.UpdatedAt = time.Now().UTC()
	if errSave := h.db.WithContext(c.Request.Context()).Save(&row).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update org failed"})
		return
	}
	c.JSON(http.StatusOK, orgResponse(row))
}

// GetOverride returns the org's explicit quota override, if any.
func (h *OrgHandler) GetOverride(c *gin.Context) {
	row, okLoad := h.loadOrg(c)
	if !okLoad {
		return
	}
	var override models.OrgRateLimit
	errFind := h.db.WithContext(c.Request.Context()).
		Where("org_id = ?", row.ID).
		Take(&override).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"override": nil, "tier": row.Tier})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load override failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"override": overrideResponse(override), "tier": row.Tier})
}

// SetOverride upserts the org's explicit quota override.
func (h *OrgHandler) SetOverride(c *gin.Context) {
	row, okLoad := h.loadOrg(c)
	if !okLoad {
		return
	}
	var body tierRequest
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.RequestsPerMinute < 0 || body.RequestsPerHour < 0 || body.RequestsPerDay < 0 ||
		body.BurstAllowance < 0 || body.WebhooksPerMinute < 0 || body.WebhooksPerHour < 0 ||
		body.MaxConcurrentRequests < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid override"})
		return
	}

	now := time.Now().UTC()
	override := models.OrgRateLimit{
		OrgID:                 row.ID,
		RequestsPerMinute:     body.RequestsPerMinute,
		RequestsPerHour:       body.RequestsPerHour,
		RequestsPerDay:        body.RequestsPerDay,
		BurstAllowance:        body.BurstAllowance,
		WebhooksPerMinute:     body.WebhooksPerMinute,
		WebhooksPerHour:       body.WebhooksPerHour,
		MaxConcurrentRequests: body.MaxConcurrentRequests,
		EnforceHardLimits:     body.EnforceHardLimits == nil || *body.EnforceHardLimits,
		IsEnabled:             body.IsEnabled == nil || *body.IsEnabled,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	errUpsert := h.db.WithContext(c.Request.Context()).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "org_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"requests_per_minute", "requests_per_hour", "requests_per_day",
				"burst_allowance", "webhooks_per_minute", "webhooks_per_hour",
				"max_concurrent_requests", "enforce_hard_limits", "is_enabled", "updated_at",
			}),
		}).
		Create(&override).Error
	if errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save override failed"})
		return
	}
	h.invalidate(row.ID)
	c.JSON(http.StatusOK, gin.H{"override": overrideResponse(override)})
}

// ClearOverride removes the org's explicit quota override.
func (h *OrgHandler) ClearOverride(c *gin.Context) {
	row, okLoad := h.loadOrg(c)
	if !okLoad {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).
		Where("org_id = ?", row.ID).
		Delete(&models.OrgRateLimit{}).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear override failed"})
		return
	}
	h.invalidate(row.ID)
	c.JSON(http.StatusOK, gin.H{"cleared": row.ID})
}

func (h *OrgHandler) loadOrg(c *gin.Context) (models.Organization, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return models.Organization{}, false
	}
	var row models.Organization
	errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return models.Organization{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load org failed"})
		return models.Organization{}, false
	}
	return row, true
}

func (h *OrgHandler) invalidate(orgID uint64) {
	if h.resolver != nil {
		h.resolver.Invalidate(orgID)
	}
}

func orgResponse(row models.Organization) gin.H {
	return gin.H{
		"id":     row.ID,
		"name":   row.Name,
		"slug":   row.Slug,
		"tier":   row.Tier,
		"active": row.Active,
	}
}

func overrideResponse(row models.OrgRateLimit) gin.H {
	return gin.H{
		"requests_per_minute":     row.RequestsPerMinute,
		"requests_per_hour":       row.RequestsPerHour,
		"requests_per_day":        row.RequestsPerDay,
		"burst_allowance":         row.BurstAllowance,
		"webhooks_per_minute":     row.WebhooksPerMinute,
		"webhooks_per_hour":       row.WebhooksPerHour,
		"max_concurrent_requests": row.MaxConcurrentRequests,
		"enforce_hard_limits":     row.EnforceHardLimits,
		"is_enabled":              row.IsEnabled,
	}
}
