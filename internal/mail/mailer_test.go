// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/pkg/errutil"
)

func newTestMailer(t *testing.T) *SMTPMailer {
	t.Helper()
	m, err := NewSMTPMailer("relay.test", 587, "noreply@taskhub.test", "", "")
	require.NoError(t, err)
	return m
}

func TestNewSMTPMailer(t *testing.T) {
	t.Run("requires host", func(t *testing.T) {
		_, err := NewSMTPMailer("", 587, "noreply@taskhub.test", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
	})

	t.Run("requires from address", func(t *testing.T) {
		_, err := NewSMTPMailer("relay.test", 587, "", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
	})

	t.Run("empty username disables auth", func(t *testing.T) {
		m := newTestMailer(t)
		assert.Nil(t, m.auth)
		assert.Equal(t, "relay.test:587", m.addr)
	})
}

func TestSMTPMailer_Send(t *testing.T) {
	ctx := context.Background()
	msg := Message{To: "bob@test.com", Subject: "Your TaskHub verification code", Body: "Your one-time passcode is 123456."}

	t.Run("delivers to the relay", func(t *testing.T) {
		m := newTestMailer(t)
		var gotTo []string
		var gotPayload []byte
		m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, payload []byte) error {
			assert.Equal(t, "relay.test:587", addr)
			assert.Equal(t, "noreply@taskhub.test", from)
			gotTo = to
			gotPayload = payload
			return nil
		}

		require.NoError(t, m.Send(ctx, msg))
		assert.Equal(t, []string{"bob@test.com"}, gotTo)
		assert.Contains(t, string(gotPayload), "Subject: Your TaskHub verification code\r\n")
		assert.Contains(t, string(gotPayload), "\r\n\r\nYour one-time passcode is 123456.\r\n")
	})

	t.Run("requires a recipient", func(t *testing.T) {
		m := newTestMailer(t)
		err := m.Send(ctx, Message{Subject: "x"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_RECIPIENT_MISSING")
	})

	t.Run("retries transient failures", func(t *testing.T) {
		m := newTestMailer(t)
		attempts := 0
		m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
			attempts++
			if attempts < 3 {
				return errors.New("451 try again later")
			}
			return nil
		}

		require.NoError(t, m.Send(ctx, msg))
		assert.Equal(t, 3, attempts)
	})

	t.Run("surfaces exhausted retries", func(t *testing.T) {
		m := newTestMailer(t)
		attempts := 0
		m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
			attempts++
			return errors.New("554 rejected")
		}

		err := m.Send(ctx, msg)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_SEND_FAILED")
		assert.Equal(t, 1+smtpMaxRetries, attempts)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		m := newTestMailer(t)
		cancelled, cancel := context.WithCancel(ctx)
		m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
			cancel()
			return errors.New("451 try again later")
		}

		err := m.Send(cancelled, msg)
		require.Error(t, err)
	})
}

func TestLogMailer_Send(t *testing.T) {
	m := NewLogMailer(nil)
	assert.NoError(t, m.Send(context.Background(), Message{To: "bob@test.com"}))
}
