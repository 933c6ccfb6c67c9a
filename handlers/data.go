package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhook/tasks"
)

// POST /api/data - Attach processed data to an existing task
func (h *Handler) saveProcessedData(c *gin.Context) {
	body, ok := h.readSigned(c)
	if !ok {
		return
	}
	in, err := tasks.ParseDataInput(body)
	if err != nil {
		h.respondError(c, err, "Failed to update task")
		return
	}

	task, err := h.deps.Tasks.SaveProcessedData(c.Request.Context(), in.TaskID, in.ProcessedData)
	if err != nil {
		h.respondError(c, err, "Failed to update task")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Task updated with processed data successfully",
		"data":    task,
	})
}

// GET /api/data?task_id= - Read a task with its processed data
func (h *Handler) getProcessedData(c *gin.Context) {
	id := c.Query("task_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id parameter is required"})
		return
	}

	task, err := h.deps.Tasks.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to fetch task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}
