// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package task

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service implements the task operations over a Repository.
type Service struct {
	tasks  Repository
	logger *slog.Logger
}

// NewService creates a task Service.
func NewService(tasks Repository, logger *slog.Logger) (*Service, error) {
	if tasks == nil {
		return nil, oops.Errorf("tasks repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: tasks, logger: logger}, nil
}

// Create stores a new task for the account.
func (s *Service) Create(ctx context.Context, accountID ulid.ULID, title, description string, status Status) (*Task, error) {
	t, err := New(accountID, title, description, status)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, oops.Code("TASK_CREATE_FAILED").
			With("operation", "create task").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "task created",
		"task_id", t.ID.String(),
		"account_id", accountID.String(),
	)
	return t, nil
}

// Get retrieves a single task.
func (s *Service) Get(ctx context.Context, id ulid.ULID) (*Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TASK_NOT_FOUND").
				With("task_id", id.String()).
				Wrap(err)
		}
		return nil, oops.Code("TASK_LOOKUP_FAILED").
			With("operation", "get task by id").
			Wrap(err)
	}
	return t, nil
}

// Update overwrites a task's title, description, and status. Empty fields
// keep their stored values; the status must be valid when supplied.
func (s *Service) Update(ctx context.Context, id ulid.ULID, title, description string, status Status) (*Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if title != "" {
		t.Title = title
	}
	if description != "" {
		t.Description = description
	}
	if status != "" {
		if !status.Valid() {
			return nil, oops.Code("TASK_STATUS_INVALID").
				With("status", string(status)).
				Errorf("unknown task status %q", status)
		}
		t.Status = status
	}

	if err := s.tasks.Update(ctx, t); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TASK_NOT_FOUND").
				With("task_id", id.String()).
				Wrap(err)
		}
		return nil, oops.Code("TASK_UPDATE_FAILED").
			With("operation", "update task").
			With("task_id", id.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "task updated", "task_id", id.String())
	return t, nil
}

// Delete soft-deletes a task. The row remains but the task disappears from
// every read path.
func (s *Service) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.tasks.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("TASK_NOT_FOUND").
				With("task_id", id.String()).
				Wrap(err)
		}
		return oops.Code("TASK_DELETE_FAILED").
			With("operation", "soft delete task").
			With("task_id", id.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "task deleted", "task_id", id.String())
	return nil
}

// List returns one page of the account's tasks plus the total count.
func (s *Service) List(ctx context.Context, accountID ulid.ULID, limit, offset int) ([]*Task, int, error) {
	tasks, total, err := s.tasks.List(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, oops.Code("TASK_LOOKUP_FAILED").
			With("operation", "list tasks").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return tasks, total, nil
}
