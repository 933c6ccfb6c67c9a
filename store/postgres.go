package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskhook/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
    id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    completed      BOOLEAN NOT NULL DEFAULT false,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_data JSONB,
    processed_at   TIMESTAMPTZ,
    status         TEXT NOT NULL DEFAULT ''
)`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS processed_data JSONB`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS processed_at TIMESTAMPTZ`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT ''`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks (created_at)`,

	`CREATE TABLE IF NOT EXISTS webhook_outbox (
    id              TEXT PRIMARY KEY,
    task_id         TEXT NOT NULL,
    payload         JSONB NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    attempts        INTEGER NOT NULL DEFAULT 0,
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_error      TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    delivered_at    TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_due ON webhook_outbox (status, next_attempt_at)`,

	`CREATE TABLE IF NOT EXISTS webhook_data (
    id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
    payload      JSONB NOT NULL,
    processed_at TIMESTAMPTZ,
    status       TEXT NOT NULL DEFAULT 'received',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

const postgresTaskColumns = `id, title, description, completed, created_at, updated_at, processed_data, processed_at, status`

// PostgresStore keeps tasks in a hosted Postgres database through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects with url, using key as the password, and ensures the schema.
func OpenPostgres(ctx context.Context, url, key string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if key != "" {
		cfg.ConnConfig.Password = key
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// scanPostgresTask reads postgresTaskColumns; extra receives any columns
// selected after them.
func scanPostgresTask(row pgx.Row, extra ...any) (models.Task, error) {
	var (
		task          models.Task
		processedData []byte
	)
	dest := append([]any{&task.ID, &task.Title, &task.Description, &task.Completed,
		&task.CreatedAt, &task.UpdatedAt, &processedData, &task.ProcessedAt, &task.Status}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, models.ErrNotFound
		}
		return models.Task{}, err
	}
	if processedData != nil {
		task.ProcessedData = json.RawMessage(processedData)
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	if task.ProcessedAt != nil {
		at := task.ProcessedAt.UTC()
		task.ProcessedAt = &at
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postgresTaskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanPostgresTask(rows)
		if err != nil {
			return nil, storeErr("list tasks", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	task, err := scanPostgresTask(s.pool.QueryRow(ctx, `SELECT `+postgresTaskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return models.Task{}, storeErr("get task", err)
	}
	return task, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	task, err := scanPostgresTask(s.pool.QueryRow(ctx, `
INSERT INTO tasks (id, title, description, completed)
VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4)
RETURNING `+postgresTaskColumns,
		in.ID, in.Title, in.Description, in.Completed))
	if err != nil {
		return models.Task{}, storeErr("create task", err)
	}
	return task, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Completed != nil {
		add("completed", *patch.Completed)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	q := `UPDATE tasks SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args)) + ` RETURNING ` + postgresTaskColumns
	task, err := scanPostgresTask(s.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return models.Task{}, storeErr("update task", err)
	}
	return task, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return storeErr("delete task", err)
	}
	return nil
}

// UpsertTask relies on xmax being zero only for freshly inserted tuples.
func (s *PostgresStore) UpsertTask(ctx context.Context, id string, fields models.TaskFields) (models.Task, bool, error) {
	var inserted bool
	task, err := scanPostgresTask(s.pool.QueryRow(ctx, `
INSERT INTO tasks (id, title, description, completed)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title,
    description = EXCLUDED.description,
    completed = EXCLUDED.completed,
    updated_at = now()
RETURNING `+postgresTaskColumns+`, (xmax = 0) AS inserted`,
		id, fields.Title, fields.Description, fields.Completed,
	), &inserted)
	if err != nil {
		return models.Task{}, false, storeErr("upsert task", err)
	}
	return task, inserted, nil
}

func (s *PostgresStore) SaveProcessedData(ctx context.Context, id string, data json.RawMessage) (models.Task, error) {
	task, err := scanPostgresTask(s.pool.QueryRow(ctx, `
UPDATE tasks
SET processed_data = $1,
    processed_at = now(),
    status = $2,
    updated_at = now()
WHERE id = $3
RETURNING `+postgresTaskColumns,
		data, models.StatusProcessed, id))
	if err != nil {
		return models.Task{}, storeErr("save processed data", err)
	}
	return task, nil
}
