// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package mail provides outbound mail delivery for TaskHub.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Message is a single outbound mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP retry policy: transient relay failures are retried with fibonacci
// backoff before the error is surfaced to the caller.
const (
	smtpMaxRetries     = 3
	smtpInitialBackoff = 500 * time.Millisecond
)

// SMTPMailer sends mail through a single SMTP relay.
type SMTPMailer struct {
	addr string // host:port
	from string
	auth smtp.Auth

	// sendMail is swappable for tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates an SMTPMailer. Username may be empty for
// unauthenticated relays.
func NewSMTPMailer(host string, port int, from, username, password string) (*SMTPMailer, error) {
	if host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if from == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp from address is required")
	}

	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPMailer{
		addr:     fmt.Sprintf("%s:%d", host, port),
		from:     from,
		auth:     auth,
		sendMail: smtp.SendMail,
	}, nil
}

// Send delivers the message, retrying transient failures.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return oops.Code("MAIL_RECIPIENT_MISSING").Errorf("recipient address is required")
	}

	payload := m.encode(msg)

	backoff := retry.WithMaxRetries(smtpMaxRetries, retry.NewFibonacci(smtpInitialBackoff))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		if sendErr := m.sendMail(m.addr, m.auth, m.from, []string{msg.To}, payload); sendErr != nil {
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", msg.To).
			With("relay", m.addr).
			Wrap(err)
	}
	return nil
}

// encode renders the RFC 5322 payload.
func (m *SMTPMailer) encode(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer logs messages instead of delivering them. Used in development
// and as the fallback when no relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message and reports success.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "mail delivery skipped (log mailer)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// Compile-time interface checks.
var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
