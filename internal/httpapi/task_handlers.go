// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/pagination"
	"github.com/taskhub/taskhub/internal/task"
)

// Task payloads are schema-validated before decoding, so the raw body is read
// once and reused.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.logger, oops.Code("REQUEST_INVALID").
			With("operation", "read request body").
			Wrap(err))
		return nil, false
	}
	return body, true
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	if err := task.ValidateCreate(body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	var req task.CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, s.logger, oops.Code("REQUEST_INVALID").
			With("operation", "decode request body").
			Wrap(err))
		return
	}

	accountID, err := ulid.Parse(req.AccountID)
	if err != nil {
		writeError(w, s.logger, oops.Code("ACCOUNT_ID_INVALID").
			With("account_id", req.AccountID).
			Errorf("account id is not a valid identifier"))
		return
	}

	t, err := s.tasks.Create(r.Context(), accountID, req.Title, req.Description, task.Status(req.Status))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	if err := task.ValidateUpdate(body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	var req task.UpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, s.logger, oops.Code("REQUEST_INVALID").
			With("operation", "decode request body").
			Wrap(err))
		return
	}

	id, err := ulid.Parse(req.ID)
	if err != nil {
		writeError(w, s.logger, oops.Code("TASK_NOT_FOUND").
			With("task_id", req.ID).
			Errorf("task not found"))
		return
	}

	t, err := s.tasks.Update(r.Context(), id, req.Title, req.Description, task.Status(req.Status))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	if err := s.tasks.Delete(r.Context(), id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "task deleted")
}

// handleListTasks pages through one account's tasks. The account and page
// parameters arrive in the body; limits are clamped the same way as on the
// account listing.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
		Limit     int    `json:"limit"`
		Page      int    `json:"page"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		missingField(w, s.logger, "accountId")
		return
	}

	accountID, err := ulid.Parse(req.AccountID)
	if err != nil {
		writeError(w, s.logger, oops.Code("ACCOUNT_ID_INVALID").
			With("account_id", req.AccountID).
			Errorf("account id is not a valid identifier"))
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.pageLimit
	}
	params := pagination.Normalize(limit, req.Page)

	tasks, total, err := s.tasks.List(r.Context(), accountID, params.Limit, params.Offset())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, pagination.NewPage(tasks, total, params, r.URL.Path))
}

// taskID parses the id path variable; a malformed id reads as not found.
func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := ulid.Parse(raw)
	if err != nil {
		writeError(w, s.logger, oops.Code("TASK_NOT_FOUND").
			With("task_id", raw).
			Errorf("task not found"))
		return ulid.ULID{}, false
	}
	return id, true
}
