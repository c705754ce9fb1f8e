// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import "errors"

var (
	// ErrNotFound is returned when a requested account or credential does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned by repositories when an insert or update
	// violates the unique email index.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateUsername is returned by repositories when an insert
	// violates the unique username index.
	ErrDuplicateUsername = errors.New("username already registered")
)
