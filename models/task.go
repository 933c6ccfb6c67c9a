package models

import (
	"encoding/json"
	"time"
)

// StatusProcessed marks a task enriched through the data ingestion endpoint.
const StatusProcessed = "processed"

type Task struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Completed     bool            `json:"completed"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ProcessedData json.RawMessage `json:"processed_data,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	Status        string          `json:"status,omitempty"`
}

// NewTask is the input for an insert. An empty ID lets the store assign one.
type NewTask struct {
	ID          string
	Title       string
	Description string
	Completed   bool
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// TaskFields is the full set of user-editable columns written by a webhook upsert.
type TaskFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}
