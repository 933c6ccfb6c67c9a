package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskhook/web"
)

func (h *Handler) indexPage(c *gin.Context) {
	h.page(c, "index.html")
}

func (h *Handler) webhookTestPage(c *gin.Context) {
	h.page(c, "webhook-test.html")
}

func (h *Handler) page(c *gin.Context, name string) {
	data, err := web.Pages.ReadFile(name)
	if err != nil {
		h.respondError(c, err, "Failed to load page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// GET /healthz - process is up
func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /readyz - store is reachable
func (h *Handler) readyz(c *gin.Context) {
	if h.deps.Store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.deps.Store.Ping(ctx); err != nil {
		h.log.Printf("readiness check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
