// Package tasks holds the task operations shared by the JSON API, the inbound
// webhook endpoints and the CLI.
package tasks

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"taskhook/events"
	"taskhook/models"
	"taskhook/store"
)

// Notifier tells the automation service about new tasks. Implementations
// report failure in the result instead of returning an error.
type Notifier interface {
	NotifyTaskCreated(ctx context.Context, task models.Task) models.WebhookResult
}

// Publisher receives live change events.
type Publisher interface {
	Publish(msg events.Message)
}

type Service struct {
	store    store.TaskStore
	notifier Notifier
	events   Publisher
	logger   *log.Logger
}

// NewService wires the task store to its side effects. events may be nil.
func NewService(st store.TaskStore, notifier Notifier, pub Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: st, notifier: notifier, events: pub, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]models.Task, error) {
	return s.store.ListTasks(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// Create inserts a task and then notifies the automation service. The
// notification outcome never fails the create.
func (s *Service) Create(ctx context.Context, title, description string) (models.Task, models.WebhookResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, models.WebhookResult{}, ErrTitleRequired
	}

	task, err := s.store.CreateTask(ctx, models.NewTask{
		Title:       title,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return models.Task{}, models.WebhookResult{}, err
	}
	s.logger.Printf("Task created: %s", task.ID)
	s.publish(events.MessageTypeTaskCreated, task)

	var res models.WebhookResult
	if s.notifier != nil {
		res = s.notifier.NotifyTaskCreated(ctx, task)
	}
	return task, res, nil
}

func (s *Service) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if patch.Empty() {
		return models.Task{}, ErrNoFieldsToPatch
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return models.Task{}, ErrTitleRequired
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}

	task, err := s.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return models.Task{}, err
	}
	s.publish(events.MessageTypeTaskUpdated, task)
	return task, nil
}

// Delete is idempotent.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.publish(events.MessageTypeTaskDeleted, map[string]string{"id": id})
	return nil
}

// Ingest applies an inbound webhook upsert and reports whether the task was
// created or updated. Ingested tasks are not echoed back to the automation
// service.
func (s *Service) Ingest(ctx context.Context, in WebhookInput) (models.Task, string, error) {
	var (
		task    models.Task
		created bool
		err     error
	)
	if in.TaskID == "" {
		task, err = s.store.CreateTask(ctx, models.NewTask{
			Title:       in.Fields.Title,
			Description: in.Fields.Description,
			Completed:   in.Fields.Completed,
		})
		created = true
	} else {
		task, created, err = s.store.UpsertTask(ctx, in.TaskID, in.Fields)
	}
	if err != nil {
		return models.Task{}, "", err
	}

	if created {
		s.logger.Printf("Webhook created task %s", task.ID)
		s.publish(events.MessageTypeTaskCreated, task)
		return task, models.OperationCreated, nil
	}
	s.logger.Printf("Webhook updated task %s", task.ID)
	s.publish(events.MessageTypeTaskUpdated, task)
	return task, models.OperationUpdated, nil
}

// SaveProcessedData attaches enrichment results to an existing task.
func (s *Service) SaveProcessedData(ctx context.Context, id string, data json.RawMessage) (models.Task, error) {
	task, err := s.store.SaveProcessedData(ctx, id, data)
	if err != nil {
		return models.Task{}, err
	}
	s.publish(events.MessageTypeTaskProcessed, task)
	return task, nil
}

func (s *Service) publish(t events.MessageType, data any) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.NewMessage(t, data))
}
