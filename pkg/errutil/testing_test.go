// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/pkg/errutil"
)

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("AUTH_EMAIL_TAKEN").Errorf("email is taken")
	errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.Code("AUTH_EMAIL_TAKEN").
		With("email", "bob@test.com").
		Errorf("email is taken")
	errutil.AssertErrorContext(t, err, "email", "bob@test.com")
}
