package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"taskhook/models"
)

func (s *SQLiteStore) EnqueueNotification(ctx context.Context, taskID string, payload json.RawMessage) (string, error) {
	id := uuid.NewString()
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO webhook_outbox (id, task_id, payload, status, attempts, next_attempt_at, created_at, updated_at)
	VALUES (?, ?, ?, 'pending', 0, ?, ?, ?)
	`, id, taskID, string(payload), now, now, now)
	if err != nil {
		return "", storeErr("enqueue notification", err)
	}
	return id, nil
}

func (s *SQLiteStore) ClaimNextDue(ctx context.Context) (models.Notification, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	var (
		n       models.Notification
		payload string
	)
	err = tx.QueryRowContext(ctx, `
	SELECT id, task_id, payload, attempts
	FROM webhook_outbox
	WHERE (status IN ('pending', 'failed') AND next_attempt_at <= ?)
	   OR (status = 'processing' AND updated_at <= ?)
	ORDER BY created_at
	LIMIT 1
	`, now, now.Add(-claimLease)).Scan(&n.ID, &n.TaskID, &payload, &n.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, false, nil
	}
	if err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}

	_, err = tx.ExecContext(ctx, `
	UPDATE webhook_outbox SET status = 'processing', attempts = attempts + 1, updated_at = ?
	WHERE id = ?
	`, now, n.ID)
	if err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}

	n.Payload = json.RawMessage(payload)
	n.Attempts++
	return n, true, nil
}

func (s *SQLiteStore) MarkDelivered(ctx context.Context, id string) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
	UPDATE webhook_outbox SET status = 'delivered', delivered_at = ?, last_error = NULL, updated_at = ?
	WHERE id = ?
	`, now, now, id)
	return storeErr("mark delivered", err)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id string, lastErr string, nextAttemptAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE webhook_outbox SET status = 'failed', last_error = ?, next_attempt_at = ?, updated_at = ?
	WHERE id = ?
	`, lastErr, nextAttemptAt.UTC(), s.now(), id)
	return storeErr("mark failed", err)
}

func (s *SQLiteStore) MarkDead(ctx context.Context, id string, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE webhook_outbox SET status = 'dead', last_error = ?, updated_at = ?
	WHERE id = ?
	`, lastErr, s.now(), id)
	return storeErr("mark dead", err)
}

// NotificationStatus exposes an outbox row's state for diagnostics and tests.
func (s *SQLiteStore) NotificationStatus(ctx context.Context, id string) (models.NotificationStatus, int, error) {
	var (
		status   models.NotificationStatus
		attempts int
	)
	err := s.db.QueryRowContext(ctx, `SELECT status, attempts FROM webhook_outbox WHERE id = ?`, id).Scan(&status, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, models.ErrNotFound
	}
	if err != nil {
		return "", 0, storeErr("notification status", err)
	}
	return status, attempts, nil
}
