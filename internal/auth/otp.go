// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/mail"
	"github.com/taskhub/taskhub/pkg/errutil"
)

// One-time passcodes are uniform random 6-digit integers.
const (
	otpMin = 100000
	otpMax = 999999
)

// OTPMailSubject is the subject line of the activation mail.
const OTPMailSubject = "Your TaskHub verification code"

// Result messages returned by Validate. Both outcomes complete the operation
// successfully from the caller's perspective.
const (
	otpVerifiedMessage  = "OTP has been verified successfully"
	otpIncorrectMessage = "OTP has been incorrect"
)

// OTPResult reports the outcome of a passcode validation.
type OTPResult struct {
	Activated bool   `json:"-"`
	Message   string `json:"msg"`
}

// OTPManager issues and validates account activation passcodes.
//
// A passcode is single-use: successful validation activates the account and
// clears the stored value, so it cannot be replayed. No expiry window is
// applied; requesting a new passcode overwrites any pending one.
type OTPManager struct {
	accounts AccountRepository
	mailer   mail.Mailer
	logger   *slog.Logger
}

// NewOTPManager creates an OTPManager.
func NewOTPManager(accounts AccountRepository, mailer mail.Mailer, logger *slog.Logger) (*OTPManager, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPManager{accounts: accounts, mailer: mailer, logger: logger}, nil
}

// Request generates a fresh passcode for the account registered under email,
// persists it, and hands it to the mailer. Delivery failures are logged, not
// propagated: the passcode is already stored and a later retry can succeed.
func (m *OTPManager) Request(ctx context.Context, email string) error {
	account, err := m.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_EMAIL_NOT_FOUND").
				With("email", NormalizeEmail(email)).
				Wrap(err)
		}
		return oops.Code("AUTH_OTP_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	otp, err := generateOTP()
	if err != nil {
		return oops.Code("AUTH_OTP_REQUEST_FAILED").
			With("operation", "generate passcode").
			Wrap(err)
	}

	if err := m.accounts.SetOTP(ctx, account.ID, otp); err != nil {
		return oops.Code("AUTH_OTP_REQUEST_FAILED").
			With("operation", "store passcode").
			Wrap(err)
	}

	msg := mail.Message{
		To:      account.Email,
		Subject: OTPMailSubject,
		Body:    fmt.Sprintf("Your one-time passcode is %d.", otp),
	}
	if err := m.mailer.Send(ctx, msg); err != nil {
		errutil.LogWarn(m.logger, "otp delivery failed", err)
	}

	return nil
}

// Validate compares the supplied passcode with the stored one. On match the
// account is activated and the passcode cleared. A mismatch is a result, not
// an error.
func (m *OTPManager) Validate(ctx context.Context, email string, otp int) (OTPResult, error) {
	account, err := m.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OTPResult{}, oops.Code("AUTH_EMAIL_NOT_FOUND").
				With("email", NormalizeEmail(email)).
				Wrap(err)
		}
		return OTPResult{}, oops.Code("AUTH_OTP_VALIDATE_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	if account.OTP == nil || *account.OTP != otp {
		return OTPResult{Activated: false, Message: otpIncorrectMessage}, nil
	}

	if err := m.accounts.Activate(ctx, account.ID); err != nil {
		return OTPResult{}, oops.Code("AUTH_OTP_VALIDATE_FAILED").
			With("operation", "activate account").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	return OTPResult{Activated: true, Message: otpVerifiedMessage}, nil
}

// generateOTP draws a uniform random passcode in [otpMin, otpMax].
func generateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return 0, err
	}
	return otpMin + int(n.Int64()), nil
}
