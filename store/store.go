// Package store is the data store client: the tasks table, the webhook outbox
// and the legacy webhook_data table, behind SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"taskhook/models"
)

// TaskStore is row-level access to the tasks table.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	CreateTask(ctx context.Context, in models.NewTask) (models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	// UpsertTask inserts a task with the given id or overwrites its fields if it
	// already exists, as one atomic operation. created reports which happened.
	UpsertTask(ctx context.Context, id string, fields models.TaskFields) (task models.Task, created bool, err error)
	SaveProcessedData(ctx context.Context, id string, data json.RawMessage) (models.Task, error)
}

// OutboxStore holds pending outbound webhook notifications.
type OutboxStore interface {
	EnqueueNotification(ctx context.Context, taskID string, payload json.RawMessage) (string, error)
	// ClaimNextDue marks one due notification as processing and returns it.
	// ok is false when nothing is due.
	ClaimNextDue(ctx context.Context) (n models.Notification, ok bool, err error)
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastErr string, nextAttemptAt time.Time) error
	MarkDead(ctx context.Context, id string, lastErr string) error
}

type Store interface {
	TaskStore
	OutboxStore
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// claimLease is how long a notification may stay in processing before another
// worker is allowed to reclaim it.
const claimLease = 5 * time.Minute

// Open picks a backend from the URL scheme. key is the store credential; it is
// applied as the Postgres password and unused by SQLite.
func Open(ctx context.Context, url, key string) (Store, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return OpenPostgres(ctx, url, key)
	default:
		return OpenSQLite(ctx, sqliteDSN(url))
	}
}

// Backend names the driver Open would use for url.
func Backend(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

func sqliteDSN(url string) string {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		return strings.TrimPrefix(url, "sqlite:")
	default:
		return url
	}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *models.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &models.StoreError{Op: op, Code: errorCode(err), Err: err}
}
