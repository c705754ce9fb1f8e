// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskhub/taskhub/pkg/errutil"
)

// envelope is the uniform response body: {error, data, message}.
type envelope struct {
	Error   bool   `json:"error"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client is gone
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Error: false, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Error: false, Message: message})
}

// writeError maps the error's code to an HTTP status and writes the envelope.
// The raw error text stays in the logs; clients get the message only.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		errutil.LogError(logger, "request failed", err)
		writeJSON(w, status, envelope{Error: true, Message: "internal error"})
		return
	}
	errutil.LogWarn(logger, "request rejected", err)
	writeJSON(w, status, envelope{Error: true, Message: err.Error()})
}

// statusForError maps structured error codes onto HTTP statuses.
func statusForError(err error) int {
	code := errutil.Code(err)
	switch {
	case code == "MISSING_FIELD",
		strings.HasSuffix(code, "_INVALID"),
		code == "AUTH_EMPTY_PASSWORD":
		return http.StatusBadRequest
	case strings.HasSuffix(code, "_TAKEN"):
		return http.StatusConflict
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// missingField builds the 400 error for an absent required field.
func missingField(w http.ResponseWriter, logger *slog.Logger, field string) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Error:   true,
		Message: field + " is required",
	})
	logger.Warn("request rejected", "code", "MISSING_FIELD", "field", field)
}
