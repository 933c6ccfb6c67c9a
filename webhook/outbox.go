package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"taskhook/models"
)

var ErrNoWork = errors.New("no due notifications")

// OutboxRepository is the slice of the store the outbox needs.
type OutboxRepository interface {
	EnqueueNotification(ctx context.Context, taskID string, payload json.RawMessage) (string, error)
	ClaimNextDue(ctx context.Context) (models.Notification, bool, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastErr string, nextAttemptAt time.Time) error
	MarkDead(ctx context.Context, id string, lastErr string) error
}

// Sender delivers one serialized payload.
type Sender interface {
	Send(ctx context.Context, body []byte) (any, error)
}

// Outbox records task_created notifications for the worker instead of
// calling the endpoint inline.
type Outbox struct {
	repo   OutboxRepository
	now    func() time.Time
	logger *log.Logger
}

func NewOutbox(repo OutboxRepository, logger *log.Logger) *Outbox {
	if logger == nil {
		logger = log.Default()
	}
	return &Outbox{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (o *Outbox) NotifyTaskCreated(ctx context.Context, task models.Task) models.WebhookResult {
	body, err := json.Marshal(models.NewTaskCreatedPayload(task, o.now()))
	if err != nil {
		return models.WebhookResult{Success: false, Error: err.Error()}
	}
	id, err := o.repo.EnqueueNotification(ctx, task.ID, body)
	if err != nil {
		o.logger.Printf("Error queueing webhook for task %s: %v", task.ID, err)
		return models.WebhookResult{Success: false, Error: err.Error()}
	}
	o.logger.Printf("Queued webhook %s for task %s", id, task.ID)
	return models.WebhookResult{Success: true, Queued: true}
}

type WorkerDeps struct {
	Repo        OutboxRepository
	Sender      Sender
	Backoff     BackoffConfig
	MaxAttempts int
	RNG         *rand.Rand
	Now         func() time.Time
}

// ProcessOnce claims and delivers at most one notification. claimed is false
// with ErrNoWork when nothing is due.
func ProcessOnce(ctx context.Context, deps WorkerDeps) (bool, error) {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Backoff.BaseDelay == 0 && deps.Backoff.MaxDelay == 0 {
		deps.Backoff = DefaultBackoff()
	}

	n, ok, err := deps.Repo.ClaimNextDue(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNoWork
	}

	if _, err := deps.Sender.Send(ctx, n.Payload); err != nil {
		if deps.MaxAttempts > 0 && n.Attempts >= deps.MaxAttempts {
			if markErr := deps.Repo.MarkDead(ctx, n.ID, err.Error()); markErr != nil {
				return true, markErr
			}
			return true, fmt.Errorf("notification %s dead after %d attempts: %w", n.ID, n.Attempts, err)
		}
		next := NextRetryAt(deps.Now(), n.Attempts, deps.Backoff, deps.RNG)
		if markErr := deps.Repo.MarkFailed(ctx, n.ID, err.Error(), next); markErr != nil {
			return true, errors.Join(err, fmt.Errorf("reschedule notification %s: %w", n.ID, markErr))
		}
		return true, err
	}

	if err := deps.Repo.MarkDelivered(ctx, n.ID); err != nil {
		return true, err
	}
	return true, nil
}

type WorkerConfig struct {
	Interval  time.Duration
	Burst     int
	IdleDelay time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Interval:  1 * time.Second,
		Burst:     5,
		IdleDelay: 800 * time.Millisecond,
	}
}

// RunWorker polls until ctx is canceled, delivering up to Burst notifications per tick.
func RunWorker(ctx context.Context, deps WorkerDeps, cfg WorkerConfig, logger *log.Logger) {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 800 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	logger.Printf("outbox worker started: interval=%s burst=%d", cfg.Interval, cfg.Burst)

	for {
		select {
		case <-ctx.Done():
			logger.Printf("outbox worker stopping: %v", ctx.Err())
			return

		case <-ticker.C:
			if !runBurst(ctx, deps, cfg.Burst, logger) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(cfg.IdleDelay):
				}
			}
		}
	}
}

// runBurst processes up to n notifications and reports whether any was claimed,
// whether or not its delivery succeeded.
func runBurst(ctx context.Context, deps WorkerDeps, n int, logger *log.Logger) bool {
	claimedAny := false
	for i := 0; i < n; i++ {
		claimed, err := ProcessOnce(ctx, deps)
		if claimed {
			claimedAny = true
		}
		if err != nil {
			if errors.Is(err, ErrNoWork) {
				break
			}
			logger.Printf("outbox worker: %v", err)
		}
	}
	return claimedAny
}
