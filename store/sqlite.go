package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"taskhook/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	completed INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	processed_data TEXT,
	processed_at DATETIME,
	status TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);

CREATE TABLE IF NOT EXISTS webhook_outbox (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at DATETIME NOT NULL,
	last_error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	delivered_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_outbox_due ON webhook_outbox(status, next_attempt_at);

CREATE TABLE IF NOT EXISTS webhook_data (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	processed_at DATETIME,
	status TEXT NOT NULL DEFAULT 'received',
	created_at DATETIME NOT NULL
);
`

const sqliteTaskColumns = `id, title, description, completed, created_at, updated_at, processed_data, processed_at, status`

// SQLiteStore keeps tasks in an embedded SQLite file. It holds a single
// connection, so transactions serialize every writer in the process.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at dsn and applies the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return storeErr("migrate", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row rowScanner) (models.Task, error) {
	var (
		task          models.Task
		processedData sql.NullString
		processedAt   sql.NullTime
	)
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Completed,
		&task.CreatedAt, &task.UpdatedAt, &processedData, &processedAt, &task.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, models.ErrNotFound
		}
		return models.Task{}, err
	}
	if processedData.Valid {
		task.ProcessedData = json.RawMessage(processedData.String)
	}
	if processedAt.Valid {
		at := processedAt.Time.UTC()
		task.ProcessedAt = &at
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return task, nil
}

// ListTasks returns every task, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanSQLiteTask(rows)
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

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	task, err := scanSQLiteTask(s.db.QueryRowContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return models.Task{}, storeErr("get task", err)
	}
	return task, nil
}

// CreateTask inserts a row, generating a uuid when in.ID is empty.
func (s *SQLiteStore) CreateTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO tasks (id, title, description, completed, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`, id, in.Title, in.Description, in.Completed, now, now)
	if err != nil {
		return models.Task{}, storeErr("create task", err)
	}
	return s.GetTask(ctx, id)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return models.Task{}, storeErr("update task", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Task{}, storeErr("update task", err)
	} else if n == 0 {
		return models.Task{}, models.ErrNotFound
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes the row; a missing row is not an error.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return storeErr("delete task", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertTask(ctx context.Context, id string, fields models.TaskFields) (models.Task, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, false, storeErr("upsert task", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&count); err != nil {
		return models.Task{}, false, storeErr("upsert task", err)
	}

	now := s.now()
	created := count == 0
	if created {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		`, id, fields.Title, fields.Description, fields.Completed, now, now)
	} else {
		_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, completed = ?, updated_at = ?
		WHERE id = ?
		`, fields.Title, fields.Description, fields.Completed, now, id)
	}
	if err != nil {
		return models.Task{}, false, storeErr("upsert task", err)
	}

	task, err := scanSQLiteTask(tx.QueryRowContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return models.Task{}, false, storeErr("upsert task", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Task{}, false, storeErr("upsert task", err)
	}
	return task, created, nil
}

// SaveProcessedData attaches enrichment output to an existing task. It never creates rows.
func (s *SQLiteStore) SaveProcessedData(ctx context.Context, id string, data json.RawMessage) (models.Task, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
	UPDATE tasks SET processed_data = ?, processed_at = ?, status = ?, updated_at = ?
	WHERE id = ?
	`, string(data), now, models.StatusProcessed, now, id)
	if err != nil {
		return models.Task{}, storeErr("save processed data", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Task{}, storeErr("save processed data", err)
	} else if n == 0 {
		return models.Task{}, models.ErrNotFound
	}
	return s.GetTask(ctx, id)
}
