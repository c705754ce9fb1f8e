// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints, applied after normalization.
const (
	MinUsernameLength = 4
	MaxUsernameLength = 30
)

// usernameStripRegex matches everything normalization removes: any rune that
// is not a lowercase letter, digit, or underscore.
var usernameStripRegex = regexp.MustCompile(`[^a-z0-9_]`)

// Role is the stored account role. TaskHub stores the value but does not
// enforce permissions on it.
type Role int

// Account roles.
const (
	RoleAdmin     Role = 1
	RoleModerator Role = 2
	RoleVisitor   Role = 3
)

// Account represents a registered user account.
type Account struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	OTP          *int    // pending one-time passcode, nil when none issued
	SessionToken *string // current session credential, nil when logged out
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicAccount is the caller-facing projection of an Account. The password
// hash, passcode, and credential never leave the service boundary.
type PublicAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"isActive"`
}

// NewAccount creates an inactive account with normalized username and email.
// The password hash must already be computed by a PasswordHasher.
func NewAccount(username, email, passwordHash string) (*Account, error) {
	normalized := NormalizeUsername(username)
	if err := ValidateUsername(normalized); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, oops.Code("AUTH_EMAIL_INVALID").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_HASH_INVALID").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Username:     normalized,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Active:       false,
		Role:         RoleVisitor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Public returns the caller-facing projection of the account.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:       a.ID.String(),
		Username: a.Username,
		Email:    a.Email,
		Active:   a.Active,
	}
}

// NormalizeEmail lowercases an email address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(email)
}

// NormalizeUsername lowercases a username, replaces spaces with underscores,
// and strips every remaining rune outside [a-z0-9_].
func NormalizeUsername(username string) string {
	lowered := strings.ReplaceAll(strings.ToLower(username), " ", "_")
	return usernameStripRegex.ReplaceAllString(lowered, "")
}

// ValidateUsername validates an already-normalized username against the
// length constraints.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_USERNAME_INVALID").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters after normalization", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_USERNAME_INVALID").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	return nil
}

// AccountRepository manages account persistence.
//
// Create must be backed by unique indexes on username and email and report
// violations as ErrDuplicateUsername / ErrDuplicateEmail; the service-level
// availability pre-check only improves error reporting and cannot be relied
// on under concurrent registration.
type AccountRepository interface {
	// Create stores a new account.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByUsernameOrEmail retrieves accounts matching either value.
	// At most two records can match (one per unique index).
	GetByUsernameOrEmail(ctx context.Context, username, email string) ([]*Account, error)

	// GetBySessionToken retrieves the account holding the given credential.
	GetBySessionToken(ctx context.Context, token string) (*Account, error)

	// UpdateEmail overwrites the stored email for an account.
	UpdateEmail(ctx context.Context, id ulid.ULID, email string) error

	// UpdatePassword overwrites the stored password hash for an account.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetOTP stores a pending one-time passcode on the account.
	SetOTP(ctx context.Context, id ulid.ULID, otp int) error

	// Activate marks the account active and clears the pending passcode.
	Activate(ctx context.Context, id ulid.ULID) error

	// SetSessionToken records the current session credential, overwriting
	// any prior value (single-session policy, last writer wins).
	SetSessionToken(ctx context.Context, id ulid.ULID, token string) error

	// ClearSessionToken removes the current session credential.
	ClearSessionToken(ctx context.Context, id ulid.ULID) error

	// UsernameExists reports whether a non-deleted account holds the username.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// EmailExists reports whether a non-deleted account holds the email.
	EmailExists(ctx context.Context, email string) (bool, error)

	// List returns one page of accounts ordered by creation, plus the total
	// account count for pagination.
	List(ctx context.Context, limit, offset int) ([]*Account, int, error)
}
