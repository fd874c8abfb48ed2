package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/courselab/courselab-api/internal/models"
	"github.com/courselab/courselab-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CourseHandler serves the org-scoped course endpoints.
type CourseHandler struct {
	db *gorm.DB
}

// NewCourseHandler constructs a CourseHandler.
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{db: db}
}

// List returns the org's courses.
func (h *CourseHandler) List(c *gin.Context) {
	id, okIdentity := ratelimit.IdentityFromContext(c)
	if !okIdentity {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var rows []models.Course
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("org_id = ?", id.OrgID).
		Order("id asc").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list courses failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, courseResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{"courses": out})
}

// Create adds a course to the org.
func (h *CourseHandler) Create(c *gin.Context) {
	id, okIdentity := ratelimit.IdentityFromContext(c)
	if !okIdentity {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	// body holds the create request payload.
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Published   bool   `json:"published"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	now := time.Now().UTC()
	row := models.Course{
		OrgID:       id.OrgID,
		Title:       title,
		Description: strings.TrimSpace(body.Description),
		Published:   body.Published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create course failed"})
		return
	}
	c.JSON(http.StatusCreated, courseResponse(row))
}

// Get returns one of the org's courses.
func (h *CourseHandler) Get(c *gin.Context) {
	row, okLoad := h.loadCourse(c)
	if !okLoad {
		return
	}
	c.JSON(http.StatusOK, courseResponse(row))
}

// ListAssessments returns a course's assessments.
func (h *CourseHandler) ListAssessments(c *gin.Context) {
	course, okLoad := h.loadCourse(c)
	if !okLoad {
		return
	}
	var rows []models.Assessment
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("course_id = ?", course.ID).
		Order("id asc").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list assessments failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":            row.ID,
			"title":         row.Title,
			"passing_score": row.PassingScore,
		})
	}
	c.JSON(http.StatusOK, gin.H{"assessments": out})
}

// CreateAssessment adds an assessment to a course.
func (h *CourseHandler) CreateAssessment(c *gin.Context) {
	course, okLoad := h.loadCourse(c)
	if !okLoad {
		return
	}
	// body holds the create request payload.
	var body struct {
		Title        string `json:"title"`
		PassingScore int    `json:"passing_score"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	passingScore := body.PassingScore
	if passingScore <= 0 || passingScore > 100 {
		passingScore = 60
	}
	now := time.Now().UTC()
	row := models.Assessment{
		OrgID:        course.OrgID,
		CourseID:     course.ID,
		Title:        title,
		PassingScore: passingScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create assessment failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":            row.ID,
		"title":         row.Title,
		"passing_score": row.PassingScore,
	})
}

func (h *CourseHandler) loadCourse(c *gin.Context) (models.Course, bool) {
	identity, okIdentity := ratelimit.IdentityFromContext(c)
	if !okIdentity {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return models.Course{}, false
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return models.Course{}, false
	}
	var row models.Course
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND org_id = ?", id, identity.OrgID).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return models.Course{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load course failed"})
		return models.Course{}, false
	}
	return row, true
}

func courseResponse(row models.Course) gin.H {
	return gin.H{
		"id":          row.ID,
		"title":       row.Title,
		"description": row.Description,
		"published":   row.Published,
	}
}
