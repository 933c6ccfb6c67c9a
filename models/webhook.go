package models

import (
	"encoding/json"
	"time"
)

const ActionTaskCreated = "task_created"

// WebhookPayload is the envelope sent to the automation endpoint when a task is created.
type WebhookPayload struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Action      string    `json:"action"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewTaskCreatedPayload(t Task, now time.Time) WebhookPayload {
	return WebhookPayload{
		TaskID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		Action:      ActionTaskCreated,
		Timestamp:   now.UTC(),
	}
}

// WebhookResult is the soft outcome of an outbound call. It never fails the caller.
type WebhookResult struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WebhookStatus is the outcome of probing the automation endpoint.
type WebhookStatus struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Upsert operations reported back to webhook callers.
const (
	OperationCreated = "created"
	OperationUpdated = "updated"
)

// Notification is a pending outbound webhook held in the outbox table.
type Notification struct {
	ID       string
	TaskID   string
	Payload  json.RawMessage
	Attempts int
}

type NotificationStatus string

const (
	NotificationPending    NotificationStatus = "pending"
	NotificationProcessing NotificationStatus = "processing"
	NotificationDelivered  NotificationStatus = "delivered"
	NotificationFailed     NotificationStatus = "failed"
	NotificationDead       NotificationStatus = "dead"
)
