// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package postgres implements the auth repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/store"
)

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool store.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool store.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, username, email, password_hash, active, otp, session_token, role, created_at, updated_at`

// Create stores a new account. Unique-index violations are reported as
// auth.ErrDuplicateUsername / auth.ErrDuplicateEmail.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, username, email, password_hash, active,
			otp, session_token, role, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		account.ID.String(),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Active,
		account.OTP,
		account.SessionToken,
		int(account.Role),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return oops.Code("ACCOUNT_CREATE_FAILED").
				With("username", account.Username).
				Wrap(dup)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`,
		email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// GetByUsernameOrEmail retrieves accounts matching either value.
func (r *AccountRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) ([]*auth.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2)`,
		username, email)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "get accounts by username or email").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").
				With("operation", "scan account row").
				Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accounts, nil
}

// GetBySessionToken retrieves the account holding the given credential.
func (r *AccountRepository) GetBySessionToken(ctx context.Context, token string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE session_token = $1`,
		token)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_TOKEN_FAILED").
			With("operation", "get account by session token").
			Wrap(err)
	}
	return account, nil
}

// UpdateEmail overwrites the stored email for an account.
func (r *AccountRepository) UpdateEmail(ctx context.Context, id ulid.ULID, email string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET email = $2, updated_at = $3 WHERE id = $1`,
		id.String(), email, time.Now())
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return oops.Code("ACCOUNT_UPDATE_EMAIL_FAILED").
				With("id", id.String()).
				Wrap(dup)
		}
		return oops.Code("ACCOUNT_UPDATE_EMAIL_FAILED").
			With("operation", "update email").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword overwrites the stored password hash for an account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetOTP stores a pending one-time passcode on the account.
func (r *AccountRepository) SetOTP(ctx context.Context, id ulid.ULID, otp int) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET otp = $2, updated_at = $3 WHERE id = $1`,
		id.String(), otp, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_OTP_FAILED").
			With("operation", "set otp").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Activate marks the account active and clears the pending passcode.
func (r *AccountRepository) Activate(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET active = TRUE, otp = NULL, updated_at = $2 WHERE id = $1`,
		id.String(), time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_ACTIVATE_FAILED").
			With("operation", "activate account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetSessionToken records the current session credential, overwriting any
// prior value.
func (r *AccountRepository) SetSessionToken(ctx context.Context, id ulid.ULID, token string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET session_token = $2, updated_at = $3 WHERE id = $1`,
		id.String(), token, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_TOKEN_FAILED").
			With("operation", "set session token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ClearSessionToken removes the current session credential.
func (r *AccountRepository) ClearSessionToken(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET session_token = NULL, updated_at = $2 WHERE id = $1`,
		id.String(), time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_CLEAR_TOKEN_FAILED").
			With("operation", "clear session token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UsernameExists reports whether an account holds the username.
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(username) = LOWER($1))`,
		username).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "check username exists").
			Wrap(err)
	}
	return exists, nil
}

// EmailExists reports whether an account holds the email.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1))`,
		email).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "check email exists").
			Wrap(err)
	}
	return exists, nil
}

// List returns one page of accounts ordered by creation plus the total count.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*auth.Account, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "count accounts").
			Wrap(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, oops.Code("ACCOUNT_LIST_FAILED").
				With("operation", "scan account row").
				Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accounts, total, nil
}

// duplicateError maps a unique-violation to the matching sentinel based on
// the violated constraint, or returns nil for other errors.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case "accounts_username_key":
		return auth.ErrDuplicateUsername
	case "accounts_email_key":
		return auth.ErrDuplicateEmail
	}
	return auth.ErrDuplicateUsername
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr        string
		username     string
		email        string
		passwordHash string
		active       bool
		otp          *int
		sessionToken *string
		role         int
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(
		&idStr,
		&username,
		&email,
		&passwordHash,
		&active,
		&otp,
		&sessionToken,
		&role,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       active,
		OTP:          otp,
		SessionToken: sessionToken,
		Role:         auth.Role(role),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
