package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhook/models"
)

// GET /api/tasks - List all tasks, newest first
func (h *Handler) listTasks(c *gin.Context) {
	list, err := h.deps.Tasks.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to fetch tasks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tasks": list})
}

// POST /api/tasks - Create a task and notify the automation webhook
func (h *Handler) createTask(c *gin.Context) {
	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, webhook, err := h.deps.Tasks.Create(c.Request.Context(), input.Title, input.Description)
	if err != nil {
		h.respondError(c, err, "Failed to add task")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "task": task, "webhook": webhook})
}

// PATCH /api/tasks/:id - Update title, description or completed
func (h *Handler) updateTask(c *gin.Context) {
	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, err := h.deps.Tasks.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err, "Failed to update task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

// DELETE /api/tasks/:id - Delete a task; deleting a missing task succeeds
func (h *Handler) deleteTask(c *gin.Context) {
	if err := h.deps.Tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err, "Failed to delete task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
