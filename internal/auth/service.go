// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LoginResult reports the outcome of a login attempt. An empty Token means
// the password did not match; the caller decides how to present that.
type LoginResult struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Service implements the account lifecycle: registration, login and logout,
// and credential changes. It owns normalization and conflict detection;
// persistence is delegated to an AccountRepository.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	tokens   *TokenIssuer
	logger   *slog.Logger
}

// NewService creates an account Service.
func NewService(accounts AccountRepository, hasher PasswordHasher, tokens *TokenIssuer, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
	}, nil
}

// Register creates a new inactive account. The username and email are
// normalized before any lookup, so two spellings of the same identity cannot
// coexist. Conflicts report the username first when a single existing record
// collides on both fields.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Account, error) {
	normalizedUsername := NormalizeUsername(username)
	if err := ValidateUsername(normalizedUsername); err != nil {
		return nil, err
	}
	normalizedEmail := NormalizeEmail(email)

	existing, err := s.accounts.GetByUsernameOrEmail(ctx, normalizedUsername, normalizedEmail)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check availability").
			Wrap(err)
	}
	for _, acct := range existing {
		if acct.Username == normalizedUsername {
			return nil, oops.Code("AUTH_USERNAME_TAKEN").
				With("username", normalizedUsername).
				Errorf("username is already taken")
		}
		if acct.Email == normalizedEmail {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").
				With("email", normalizedEmail).
				Errorf("email is already registered")
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	account, err := NewAccount(username, email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// The pre-check races with concurrent registration; the unique
		// indexes are authoritative.
		switch {
		case errors.Is(err, ErrDuplicateUsername):
			return nil, oops.Code("AUTH_USERNAME_TAKEN").
				With("username", normalizedUsername).
				Wrap(err)
		case errors.Is(err, ErrDuplicateEmail):
			return nil, oops.Code("AUTH_EMAIL_TAKEN").
				With("email", normalizedEmail).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID.String(),
		"username", account.Username,
	)
	return account, nil
}

// Login verifies the password against the stored digest and, on success,
// issues a fresh session credential and records it on the account. A wrong
// password yields a LoginResult with an empty token, not an error.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	normalizedEmail := NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, normalizedEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, oops.Code("AUTH_EMAIL_NOT_FOUND").
				With("email", normalizedEmail).
				Wrap(err)
		}
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if !ok {
		return LoginResult{Email: account.Email}, nil
	}

	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return LoginResult{}, err
	}

	// Single-session policy: a new login displaces any existing credential.
	if err := s.accounts.SetSessionToken(ctx, account.ID, token); err != nil {
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "store session token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account logged in", "account_id", account.ID.String())
	return LoginResult{Email: account.Email, Token: token}, nil
}

// Logout clears the session recorded under the given credential. The
// credential is matched against stored sessions rather than parsed, so even
// an expired credential can still end its session.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return oops.Code("AUTH_SESSION_NOT_FOUND").Errorf("session credential is required")
	}

	account, err := s.accounts.GetBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_SESSION_NOT_FOUND").Wrap(err)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get account by session token").
			Wrap(err)
	}

	if err := s.accounts.ClearSessionToken(ctx, account.ID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "clear session token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account logged out", "account_id", account.ID.String())
	return nil
}

// UpdateEmail changes the stored email for an account. Setting the current
// email again is a no-op; any other value must be unused across all accounts.
func (s *Service) UpdateEmail(ctx context.Context, id ulid.ULID, email string) error {
	normalizedEmail := NormalizeEmail(email)
	if normalizedEmail == "" {
		return oops.Code("AUTH_EMAIL_INVALID").Errorf("email cannot be empty")
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_ACCOUNT_NOT_FOUND").
				With("account_id", id.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}

	if account.Email == normalizedEmail {
		return nil
	}

	taken, err := s.accounts.EmailExists(ctx, normalizedEmail)
	if err != nil {
		return oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "check email availability").
			Wrap(err)
	}
	if taken {
		return oops.Code("AUTH_EMAIL_TAKEN").
			With("email", normalizedEmail).
			Errorf("email is already registered")
	}

	if err := s.accounts.UpdateEmail(ctx, id, normalizedEmail); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return oops.Code("AUTH_EMAIL_TAKEN").
				With("email", normalizedEmail).
				Wrap(err)
		}
		return oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "update email").
			With("account_id", id.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account email updated", "account_id", id.String())
	return nil
}

// UpdatePassword replaces the stored password digest for an account.
func (s *Service) UpdatePassword(ctx context.Context, id ulid.ULID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_ACCOUNT_NOT_FOUND").
				With("account_id", id.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "update password").
			With("account_id", id.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account password updated", "account_id", id.String())
	return nil
}

// GetByID retrieves a single account.
func (s *Service) GetByID(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_ACCOUNT_NOT_FOUND").
				With("account_id", id.String()).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	return account, nil
}

// List returns one page of accounts plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	accounts, total, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	return accounts, total, nil
}

// IsUsernameAvailable reports whether the normalized form of username is
// unused. The normalized form is returned so callers can show what would
// actually be stored.
func (s *Service) IsUsernameAvailable(ctx context.Context, username string) (bool, string, error) {
	normalized := NormalizeUsername(username)
	if err := ValidateUsername(normalized); err != nil {
		return false, normalized, err
	}

	exists, err := s.accounts.UsernameExists(ctx, normalized)
	if err != nil {
		return false, normalized, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "check username availability").
			Wrap(err)
	}
	return !exists, normalized, nil
}

// IsEmailAvailable reports whether the normalized form of email is unused.
func (s *Service) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return false, oops.Code("AUTH_EMAIL_INVALID").Errorf("email cannot be empty")
	}

	exists, err := s.accounts.EmailExists(ctx, normalized)
	if err != nil {
		return false, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "check email availability").
			Wrap(err)
	}
	return !exists, nil
}
