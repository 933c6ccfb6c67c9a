package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhook/tasks"
	"taskhook/webhook"
)

// POST /api/webhook - Create or update a task from the automation service
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, ok := h.readSigned(c)
	if !ok {
		return
	}
	in, err := tasks.ParseWebhookInput(body, tasks.WebhookDefaults)
	if err != nil {
		h.respondError(c, err, "Failed to process webhook")
		return
	}

	task, op, err := h.deps.Tasks.Ingest(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err, fmt.Sprintf("Failed to upsert task %s", in.TaskID))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("Task %s successfully from webhook", op),
		"task":      task,
		"operation": op,
		"timestamp": h.now(),
	})
}

// GET /api/webhook - Liveness check for the automation service
func (h *Handler) webhookInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Webhook endpoint is active",
		"status":    "healthy",
		"timestamp": h.now(),
	})
}

// POST /api/test-webhook - Simulate an inbound webhook from the browser
func (h *Handler) testWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	in, err := tasks.ParseWebhookInput(body, tasks.TestWebhookDefaults)
	if err != nil {
		h.respondError(c, err, "Failed to create test task")
		return
	}
	h.log.Printf("Simulating n8n webhook with data: title=%q", in.Fields.Title)

	task, op, err := h.deps.Tasks.Ingest(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err, "Failed to create test task")
		return
	}
	webhookData := gin.H{"title": in.Fields.Title, "description": in.Fields.Description}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Test webhook executed successfully",
		"task":        task,
		"operation":   op,
		"webhookData": webhookData,
		"timestamp":   h.now(),
	})
}

// GET /api/test-webhook - Usage hint
func (h *Handler) testWebhookInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Test webhook endpoint",
		"usage":     `POST with { "title": "Test Task", "description": "Test Description" }`,
		"timestamp": h.now(),
	})
}

// GET /api/webhook-status - Check the outbound automation endpoint
func (h *Handler) webhookStatus(c *gin.Context) {
	status := h.deps.Webhook.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"webhook_status": status,
		"timestamp":      h.now(),
	})
}

// readSigned returns the raw body, enforcing the signature headers when a
// secret is configured. It writes the error response itself.
func (h *Handler) readSigned(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return nil, false
	}
	if h.deps.Secret == "" {
		return body, true
	}

	err = webhook.Verify(webhook.VerifyInput{
		Secret:    h.deps.Secret,
		Timestamp: c.GetHeader(webhook.TimestampHeader),
		Signature: c.GetHeader(webhook.SignatureHeader),
		Body:      body,
		Now:       h.now(),
	})
	switch {
	case err == nil:
		return body, true
	case errors.Is(err, webhook.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
	h.log.Printf("req_id=%s rejected unsigned webhook: %v", c.GetString(requestIDHeader), err)
	return nil, false
}
