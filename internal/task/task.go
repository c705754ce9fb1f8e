// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package task implements the task list: creation, status tracking, and
// soft deletion, scoped per account.
package task

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Status is the workflow state of a task.
type Status string

// Task statuses. Stored verbatim, so the casing is part of the contract.
const (
	StatusCompleted  Status = "Completed"
	StatusInProgress Status = "InProgress"
	StatusPending    Status = "Pending"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusInProgress, StatusPending:
		return true
	}
	return false
}

// Task is a single to-do item owned by an account.
type Task struct {
	ID          ulid.ULID `json:"id"`
	AccountID   ulid.ULID `json:"accountId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Deleted     bool      `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// New creates a Task. An empty status defaults to Pending.
func New(accountID ulid.ULID, title, description string, status Status) (*Task, error) {
	if title == "" {
		return nil, oops.Code("TASK_TITLE_INVALID").Errorf("title cannot be empty")
	}
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, oops.Code("TASK_STATUS_INVALID").
			With("status", string(status)).
			Errorf("unknown task status %q", status)
	}

	now := time.Now()
	return &Task{
		ID:          ulid.Make(),
		AccountID:   accountID,
		Title:       title,
		Description: description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ErrNotFound is returned when a task does not exist or is soft-deleted.
var ErrNotFound = oops.Code("TASK_NOT_FOUND").Errorf("task not found")

// Repository manages task persistence. Soft-deleted tasks are invisible to
// every read operation.
type Repository interface {
	// Create stores a new task.
	Create(ctx context.Context, t *Task) error

	// GetByID retrieves a task by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Task, error)

	// Update overwrites title, description, and status of a task.
	Update(ctx context.Context, t *Task) error

	// SoftDelete marks a task deleted without removing the row.
	SoftDelete(ctx context.Context, id ulid.ULID) error

	// List returns one page of an account's tasks ordered by creation,
	// plus that account's total task count.
	List(ctx context.Context, accountID ulid.ULID, limit, offset int) ([]*Task, int, error)
}
