package tasks

import (
	"bytes"
	"encoding/json"

	"taskhook/models"
)

// Defaults fill title and description when an inbound webhook omits them.
type Defaults struct {
	Title       string
	Description string
}

var (
	WebhookDefaults = Defaults{
		Title:       "Task from n8n",
		Description: "Task created via webhook",
	}
	TestWebhookDefaults = Defaults{
		Title:       "Test Task from n8n",
		Description: "This is a test task created via webhook simulation",
	}
)

// WebhookInput is a decoded inbound upsert. An empty TaskID means "create new".
type WebhookInput struct {
	TaskID string
	Fields models.TaskFields
}

type webhookBody struct {
	TaskID      json.RawMessage `json:"task_id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Completed   *bool           `json:"completed"`
}

// ParseWebhookInput decodes an inbound upsert body and applies defaults to
// missing or empty fields.
func ParseWebhookInput(body []byte, d Defaults) (WebhookInput, error) {
	if !isObject(body) {
		return WebhookInput{}, ErrBodyNotObject
	}
	var b webhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return WebhookInput{}, models.ValidationError("invalid JSON: " + err.Error())
	}

	id, err := parseTaskID(b.TaskID)
	if err != nil {
		return WebhookInput{}, err
	}

	in := WebhookInput{
		TaskID: id,
		Fields: models.TaskFields{Title: d.Title, Description: d.Description},
	}
	if b.Title != nil && *b.Title != "" {
		in.Fields.Title = *b.Title
	}
	if b.Description != nil && *b.Description != "" {
		in.Fields.Description = *b.Description
	}
	if b.Completed != nil {
		in.Fields.Completed = *b.Completed
	}
	return in, nil
}

// DataInput is an inbound processed-data delivery.
type DataInput struct {
	TaskID        string
	ProcessedData json.RawMessage
}

type dataBody struct {
	TaskID        json.RawMessage `json:"task_id"`
	ProcessedData json.RawMessage `json:"processed_data"`
}

func ParseDataInput(body []byte) (DataInput, error) {
	if !isObject(body) {
		return DataInput{}, ErrBodyNotObject
	}
	var b dataBody
	if err := json.Unmarshal(body, &b); err != nil {
		return DataInput{}, models.ValidationError("invalid JSON: " + err.Error())
	}
	id, err := parseTaskID(b.TaskID)
	if err != nil {
		return DataInput{}, err
	}
	if id == "" {
		return DataInput{}, ErrDataFieldsRequired
	}
	if isFalsy(b.ProcessedData) {
		return DataInput{}, ErrDataFieldsRequired
	}
	return DataInput{TaskID: id, ProcessedData: b.ProcessedData}, nil
}

// parseTaskID accepts a JSON string or number. Strings are kept verbatim.
// Absent, null, "" and 0 yield "".
func parseTaskID(raw json.RawMessage) (string, error) {
	if isFalsy(raw) {
		return "", nil
	}
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", ErrInvalidTaskID
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", ErrInvalidTaskID
		}
		return n.String(), nil
	}
}

// isFalsy reports whether raw is missing, null, false, "" or a zero number.
func isFalsy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case float64:
		return v == 0
	}
	return false
}

func isObject(body []byte) bool {
	body = bytes.TrimSpace(body)
	return len(body) > 0 && body[0] == '{'
}
