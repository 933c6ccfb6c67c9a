package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhook/models"
)

// respondError maps service errors onto status codes. failMsg is the public
// message for store failures.
func (h *Handler) respondError(c *gin.Context, err error, failMsg string) {
	var se *models.StoreError
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.As(err, &se):
		h.log.Printf("req_id=%s %s: %v", c.GetString(requestIDHeader), failMsg, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   failMsg,
			"details": se.Err.Error(),
			"code":    se.Code,
		})
	default:
		h.log.Printf("req_id=%s %s: %v", c.GetString(requestIDHeader), failMsg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": failMsg})
	}
}
