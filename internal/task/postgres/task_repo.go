// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package postgres implements the task repository using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/store"
	"github.com/taskhub/taskhub/internal/task"
)

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	pool store.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool store.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, account_id, title, description, status, created_at, updated_at`

// Create stores a new task.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (id, account_id, title, description, status, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
	`,
		t.ID.String(),
		t.AccountID.String(),
		t.Title,
		t.Description,
		string(t.Status),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return oops.Code("TASK_CREATE_FAILED").
			With("operation", "insert task").
			With("task_id", t.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a non-deleted task by ID.
func (r *TaskRepository) GetByID(ctx context.Context, id ulid.ULID) (*task.Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND NOT deleted`,
		id.String())

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TASK_NOT_FOUND").
			With("task_id", id.String()).
			Wrap(task.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TASK_GET_BY_ID_FAILED").
			With("operation", "get task by id").
			With("task_id", id.String()).
			Wrap(err)
	}
	return t, nil
}

// Update overwrites title, description, and status of a non-deleted task.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks SET title = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1 AND NOT deleted
	`,
		t.ID.String(),
		t.Title,
		t.Description,
		string(t.Status),
		time.Now(),
	)
	if err != nil {
		return oops.Code("TASK_UPDATE_FAILED").
			With("operation", "update task").
			With("task_id", t.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TASK_NOT_FOUND").
			With("task_id", t.ID.String()).
			Wrap(task.ErrNotFound)
	}
	return nil
}

// SoftDelete marks a task deleted. The row stays for audit purposes but is
// invisible to reads.
func (r *TaskRepository) SoftDelete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE tasks SET deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT deleted`,
		id.String(), time.Now())
	if err != nil {
		return oops.Code("TASK_DELETE_FAILED").
			With("operation", "soft delete task").
			With("task_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TASK_NOT_FOUND").
			With("task_id", id.String()).
			Wrap(task.ErrNotFound)
	}
	return nil
}

// List returns one page of an account's non-deleted tasks ordered by
// creation, plus the account's total task count.
func (r *TaskRepository) List(ctx context.Context, accountID ulid.ULID, limit, offset int) ([]*task.Task, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE account_id = $1 AND NOT deleted`,
		accountID.String()).Scan(&total)
	if err != nil {
		return nil, 0, oops.Code("TASK_LIST_FAILED").
			With("operation", "count tasks").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE account_id = $1 AND NOT deleted
		 ORDER BY id LIMIT $2 OFFSET $3`,
		accountID.String(), limit, offset)
	if err != nil {
		return nil, 0, oops.Code("TASK_LIST_FAILED").
			With("operation", "list tasks").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, oops.Code("TASK_LIST_FAILED").
				With("operation", "scan task row").
				Wrap(err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, oops.Code("TASK_LIST_FAILED").
			With("operation", "iterate tasks").
			Wrap(err)
	}
	return tasks, total, nil
}

// scanTask scans a single row into a Task.
// Callers are responsible for handling pgx.ErrNoRows.
func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		idStr        string
		accountIDStr string
		title        string
		description  string
		status       string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&idStr, &accountIDStr, &title, &description, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("TASK_SCAN_FAILED").
			With("operation", "scan task").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TASK_INVALID_ID").
			With("operation", "parse task id").
			With("id", idStr).
			Wrap(err)
	}
	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("TASK_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	return &task.Task{
		ID:          id,
		AccountID:   accountID,
		Title:       title,
		Description: description,
		Status:      task.Status(status),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// Compile-time interface check.
var _ task.Repository = (*TaskRepository)(nil)
