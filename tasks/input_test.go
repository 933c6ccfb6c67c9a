package tasks

import (
	"errors"
	"testing"

	"taskhook/models"
)

func TestParseWebhookInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want WebhookInput
		err  error
	}{
		{
			name: "defaults",
			body: `{}`,
			want: WebhookInput{Fields: models.TaskFields{Title: "Task from n8n", Description: "Task created via webhook"}},
		},
		{
			name: "empty strings take defaults",
			body: `{"title":"","description":""}`,
			want: WebhookInput{Fields: models.TaskFields{Title: "Task from n8n", Description: "Task created via webhook"}},
		},
		{
			name: "string id",
			body: `{"task_id":"abc-123","title":"Edit video","completed":true}`,
			want: WebhookInput{TaskID: "abc-123", Fields: models.TaskFields{Title: "Edit video", Description: "Task created via webhook", Completed: true}},
		},
		{
			name: "numeric id",
			body: `{"task_id":42}`,
			want: WebhookInput{TaskID: "42", Fields: models.TaskFields{Title: "Task from n8n", Description: "Task created via webhook"}},
		},
		{
			name: "null id",
			body: `{"task_id":null}`,
			want: WebhookInput{Fields: models.TaskFields{Title: "Task from n8n", Description: "Task created via webhook"}},
		},
		{
			name: "padded id kept verbatim",
			body: `{"task_id":"  abc-123  "}`,
			want: WebhookInput{TaskID: "  abc-123  ", Fields: models.TaskFields{Title: "Task from n8n", Description: "Task created via webhook"}},
		},
		{
			name: "zero id means new task",
			body: `{"task_id":0}`,
			want: WebhookInput{Fields: models.TaskFields{Title: "Task from n8n", Description: "Task created via webhook"}},
		},
		{name: "array body", body: `[1,2]`, err: ErrBodyNotObject},
		{name: "empty body", body: ``, err: ErrBodyNotObject},
		{name: "bool id", body: `{"task_id":true}`, err: ErrInvalidTaskID},
		{name: "bad completed", body: `{"completed":"yes"}`, err: models.ErrValidation},
		{name: "string completed", body: `{"completed":"true"}`, err: models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWebhookInput([]byte(tt.body), WebhookDefaults)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("got %v want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestParseWebhookInput_TestDefaults(t *testing.T) {
	got, err := ParseWebhookInput([]byte(`{}`), TestWebhookDefaults)
	if err != nil {
		t.Fatal(err)
	}
	if got.Fields.Title != "Test Task from n8n" || got.Fields.Description != "This is a test task created via webhook simulation" {
		t.Fatalf("unexpected defaults %+v", got.Fields)
	}
}

func TestParseDataInput(t *testing.T) {
	in, err := ParseDataInput([]byte(`{"task_id":"abc-123","processed_data":{"foo":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	if in.TaskID != "abc-123" || string(in.ProcessedData) != `{"foo":1}` {
		t.Fatalf("unexpected input %+v", in)
	}

	if _, err := ParseDataInput([]byte(`{"processed_data":{}}`)); !errors.Is(err, ErrDataFieldsRequired) {
		t.Fatalf("expected ErrDataFieldsRequired, got %v", err)
	}
	if _, err := ParseDataInput([]byte(`{"task_id":"x"}`)); !errors.Is(err, ErrDataFieldsRequired) {
		t.Fatalf("expected ErrDataFieldsRequired, got %v", err)
	}
	for _, empty := range []string{`null`, `0`, `false`, `""`} {
		body := `{"task_id":"x","processed_data":` + empty + `}`
		if _, err := ParseDataInput([]byte(body)); !errors.Is(err, ErrDataFieldsRequired) {
			t.Fatalf("processed_data=%s: expected ErrDataFieldsRequired, got %v", empty, err)
		}
	}

	in, err = ParseDataInput([]byte(`{"task_id":" abc ","processed_data":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if in.TaskID != " abc " {
		t.Fatalf("task_id=%q", in.TaskID)
	}
}
