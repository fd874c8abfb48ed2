package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/courselab/courselab-api/internal/usage"
	"github.com/gin-gonic/gin"
)

// UsageHandler serves per-org quota consumption reports.
type UsageHandler struct {
	reporter *usage.Reporter
}

// NewUsageHandler constructs a usage handler.
func NewUsageHandler(reporter *usage.Reporter) *UsageHandler {
	return &UsageHandler{reporter: reporter}
}

// OrgUsage returns the current-window consumption for one org.
func (h *UsageHandler) OrgUsage(c *gin.Context) {
	orgID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || orgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	summary, errSummary := h.reporter.OrgSummary(c.Request.Context(), orgID)
	if errSummary != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load usage failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
