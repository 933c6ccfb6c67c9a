package tasks

import "taskhook/models"

var (
	ErrTitleRequired      = models.ValidationError("Title is required")
	ErrNoFieldsToPatch    = models.ValidationError("provide at least one field: title, description or completed")
	ErrBodyNotObject      = models.ValidationError("request body must be a JSON object")
	ErrInvalidTaskID      = models.ValidationError("task_id must be a string or number")
	ErrDataFieldsRequired = models.ValidationError("Missing required fields: task_id and processed_data")
)
