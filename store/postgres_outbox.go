package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"taskhook/models"
)

func (s *PostgresStore) EnqueueNotification(ctx context.Context, taskID string, payload json.RawMessage) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
INSERT INTO webhook_outbox (id, task_id, payload, status, attempts, next_attempt_at)
VALUES ($1, $2, $3, 'pending', 0, now())`, id, taskID, payload)
	if err != nil {
		return "", storeErr("enqueue notification", err)
	}
	return id, nil
}

// ClaimNextDue locks one due row with SKIP LOCKED so concurrent workers never share it.
func (s *PostgresStore) ClaimNextDue(ctx context.Context) (models.Notification, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		n       models.Notification
		payload []byte
	)
	err = tx.QueryRow(ctx, `
SELECT id, task_id, payload, attempts
FROM webhook_outbox
WHERE (status IN ('pending', 'failed') AND next_attempt_at <= now())
   OR (status = 'processing' AND updated_at <= $1)
ORDER BY created_at
FOR UPDATE SKIP LOCKED
LIMIT 1`, time.Now().Add(-claimLease).UTC()).Scan(&n.ID, &n.TaskID, &payload, &n.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Notification{}, false, nil
	}
	if err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}

	err = tx.QueryRow(ctx, `
UPDATE webhook_outbox
SET status = 'processing',
    attempts = attempts + 1,
    updated_at = now()
WHERE id = $1
RETURNING attempts`, n.ID).Scan(&n.Attempts)
	if err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Notification{}, false, storeErr("claim notification", err)
	}
	n.Payload = json.RawMessage(payload)
	return n, true, nil
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE webhook_outbox
SET status = 'delivered',
    delivered_at = now(),
    last_error = NULL,
    updated_at = now()
WHERE id = $1`, id)
	return storeErr("mark delivered", err)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string, lastErr string, nextAttemptAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
UPDATE webhook_outbox
SET status = 'failed',
    last_error = $2,
    next_attempt_at = $3,
    updated_at = now()
WHERE id = $1`, id, lastErr, nextAttemptAt.UTC())
	return storeErr("mark failed", err)
}

func (s *PostgresStore) MarkDead(ctx context.Context, id string, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE webhook_outbox
SET status = 'dead',
    last_error = $2,
    updated_at = now()
WHERE id = $1`, id, lastErr)
	return storeErr("mark dead", err)
}

func (s *PostgresStore) NotificationStatus(ctx context.Context, id string) (models.NotificationStatus, int, error) {
	var (
		status   models.NotificationStatus
		attempts int
	)
	err := s.pool.QueryRow(ctx, `SELECT status, attempts FROM webhook_outbox WHERE id = $1`, id).Scan(&status, &attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, models.ErrNotFound
	}
	if err != nil {
		return "", 0, storeErr("notification status", err)
	}
	return status, attempts, nil
}
