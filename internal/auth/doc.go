// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package auth provides the account and session-credential core of TaskHub.
//
// # Domain Types
//
// Account is created through NewAccount, which normalizes the username and
// email and validates the result. Direct struct initialization bypasses
// normalization and may create invalid state. Repository implementations
// receive pre-normalized accounts from the constructor.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, logout, email/password updates
//   - OTPManager - one-time passcode issuance and validation
//   - TokenIssuer - signed session credentials (JWT, fixed TTL)
//
// Login failure and OTP mismatch are results, not errors: callers branch on
// the returned value. Errors are reserved for missing accounts and
// collaborator failures.
package auth
