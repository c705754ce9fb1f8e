// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package errutil provides helpers for logging and asserting structured errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	logAt(logger.Error, msg, err)
}

// LogWarn is LogError at warning level, for best-effort side effects whose
// failure does not fail the operation (mail delivery, credential cleanup).
func LogWarn(logger *slog.Logger, msg string, err error) {
	logAt(logger.Warn, msg, err)
}

// Code returns the oops code attached to err, or "" for plain errors.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}

func logAt(log func(msg string, args ...any), msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := Code(err); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		log(msg, attrs...)
		return
	}
	log(msg, "error", err)
}
