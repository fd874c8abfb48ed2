package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// APIKeyHandler manages admin API key endpoints.
type APIKeyHandler struct {
	db *gorm.DB
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(db *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: db}
}

// Create issues a new API key for an organization. The plaintext token is
// returned once and never stored.
func (h *APIKeyHandler) Create(c *gin.Context) {
	orgID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid org id"})
		return
	}
	// body holds the create request payload.
	var body struct {
		Name string `json:"name"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.Organization{}).
		Where("id = ?", orgID).
		Count(&count).Error; errCount != nil || count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "org not found"})
		return
	}

	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate api key failed"})
		return
	}
	now := time.Now().UTC()
	row := models.APIKey{
		OrgID:     orgID,
		Name:      name,
		KeyHash:   security.HashAPIKey(token),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create api key failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":     row.ID,
		"org_id": row.OrgID,
		"name":   row.Name,
		"token":  token,
	})
}

// List returns an organization's API keys.
func (h *APIKeyHandler) List(c *gin.Context) {
	orgID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid org id"})
		return
	}
	var rows []models.APIKey
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("org_id = ?", orgID).
		Order("id asc").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list api keys failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{
			"id":     row.ID,
			"name":   row.Name,
			"active": row.Active,
		}
		if row.LastUsedAt != nil {
			entry["last_used_at"] = row.LastUsedAt.Unix()
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": out})
}

// Revoke deactivates an API key.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result := h.db.WithContext(c.Request.Context()).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": id})
}
