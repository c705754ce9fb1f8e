// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package httpapi_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/auth"
	authmocks "github.com/taskhub/taskhub/internal/auth/mocks"
	"github.com/taskhub/taskhub/internal/httpapi"
	mailmocks "github.com/taskhub/taskhub/internal/mail/mocks"
	"github.com/taskhub/taskhub/internal/task"
	taskmocks "github.com/taskhub/taskhub/internal/task/mocks"
)

type fixture struct {
	accounts *authmocks.MockAccountRepository
	hasher   *authmocks.MockPasswordHasher
	mailer   *mailmocks.MockMailer
	tasks    *taskmocks.MockRepository
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := authmocks.NewMockAccountRepository(t)
	hasher := authmocks.NewMockPasswordHasher(t)
	mailer := mailmocks.NewMockMailer(t)
	tasks := taskmocks.NewMockRepository(t)

	issuer, err := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	require.NoError(t, err)

	accountSvc, err := auth.NewService(accounts, hasher, issuer, nil)
	require.NoError(t, err)
	otpMgr, err := auth.NewOTPManager(accounts, mailer, nil)
	require.NoError(t, err)
	taskSvc, err := task.NewService(tasks, nil)
	require.NoError(t, err)

	server, err := httpapi.NewServer(httpapi.Options{
		Addr:     "127.0.0.1:0",
		Accounts: accountSvc,
		OTP:      otpMgr,
		Tasks:    taskSvc,
	})
	require.NoError(t, err)

	return &fixture{
		accounts: accounts,
		hasher:   hasher,
		mailer:   mailer,
		tasks:    tasks,
		handler:  server.Router(),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("creates account", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetByUsernameOrEmail", mock.Anything, "bob_smith", "bob@test.com").
			Return(nil, nil)
		f.hasher.On("Hash", "pass1234").Return("$argon2id$hash", nil)
		f.accounts.On("Create", mock.Anything, mock.AnythingOfType("*auth.Account")).Return(nil)

		rec := f.do(t, http.MethodPost, "/user",
			`{"username":"Bob Smith","email":"Bob@Test.com","password":"pass1234"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, false, body["error"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "bob_smith", data["username"])
		assert.Equal(t, "bob@test.com", data["email"])
		assert.Equal(t, false, data["isActive"])
		assert.NotEmpty(t, data["id"])
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/user", `{"email":"bob@test.com","password":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, true, body["error"])
		assert.Equal(t, "username is required", body["message"])
	})

	t.Run("reports duplicate email as conflict", func(t *testing.T) {
		f := newFixture(t)
		existing := &auth.Account{ID: ulid.Make(), Username: "someone_else", Email: "bob@test.com"}
		f.accounts.On("GetByUsernameOrEmail", mock.Anything, "bob_smith", "bob@test.com").
			Return([]*auth.Account{existing}, nil)

		rec := f.do(t, http.MethodPost, "/user",
			`{"username":"bob_smith","email":"bob@test.com","password":"pass1234"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/user", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginEndpoint(t *testing.T) {
	account := &auth.Account{
		ID:           ulid.Make(),
		Username:     "bob_smith",
		Email:        "bob@test.com",
		PasswordHash: "$argon2id$hash",
	}

	t.Run("returns token on success", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "bob@test.com").Return(account, nil)
		f.hasher.On("Verify", "pass1234", "$argon2id$hash").Return(true, nil)
		f.accounts.On("SetSessionToken", mock.Anything, account.ID, mock.AnythingOfType("string")).
			Return(nil)

		rec := f.do(t, http.MethodPost, "/login", `{"email":"Bob@Test.com","password":"pass1234"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "bob@test.com", data["email"])
		assert.NotEmpty(t, data["token"])
	})

	t.Run("wrong password yields empty token", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "bob@test.com").Return(account, nil)
		f.hasher.On("Verify", "wrong", "$argon2id$hash").Return(false, nil)

		rec := f.do(t, http.MethodPost, "/login", `{"email":"bob@test.com","password":"wrong"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "", data["token"])
	})

	t.Run("unknown email is 404", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "ghost@test.com").
			Return(nil, auth.ErrNotFound)

		rec := f.do(t, http.MethodPost, "/login", `{"email":"ghost@test.com","password":"x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOTPEndpoints(t *testing.T) {
	account := &auth.Account{ID: ulid.Make(), Email: "bob@test.com"}

	t.Run("sendotp stores and mails a passcode", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "bob@test.com").Return(account, nil)
		f.accounts.On("SetOTP", mock.Anything, account.ID, mock.AnythingOfType("int")).Return(nil)
		f.mailer.On("Send", mock.Anything, mock.AnythingOfType("mail.Message")).Return(nil)

		rec := f.do(t, http.MethodPost, "/sendotp", `{"email":"bob@test.com"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OTP has been sent", decodeEnvelope(t, rec)["message"])
	})

	t.Run("validateotp mismatch is an in-band result", func(t *testing.T) {
		f := newFixture(t)
		stored := 123456
		withOTP := *account
		withOTP.OTP = &stored
		f.accounts.On("GetByEmail", mock.Anything, "bob@test.com").Return(&withOTP, nil)

		rec := f.do(t, http.MethodPost, "/validateotp", `{"email":"bob@test.com","otp":654321}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "OTP has been incorrect", data["msg"])
	})

	t.Run("validateotp match activates the account", func(t *testing.T) {
		f := newFixture(t)
		stored := 123456
		withOTP := *account
		withOTP.OTP = &stored
		f.accounts.On("GetByEmail", mock.Anything, "bob@test.com").Return(&withOTP, nil)
		f.accounts.On("Activate", mock.Anything, account.ID).Return(nil)

		rec := f.do(t, http.MethodPost, "/validateotp", `{"email":"bob@test.com","otp":123456}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "OTP has been verified successfully", data["msg"])
	})
}

func TestLogoutEndpoint(t *testing.T) {
	account := &auth.Account{ID: ulid.Make(), Email: "bob@test.com"}

	t.Run("accepts token from header", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetBySessionToken", mock.Anything, "session-token").Return(account, nil)
		f.accounts.On("ClearSessionToken", mock.Anything, account.ID).Return(nil)

		req := httptest.NewRequest(http.MethodGet, "/logout", nil)
		req.Header.Set("x-access-token", "session-token")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "logged out successfully", decodeEnvelope(t, rec)["message"])
	})

	t.Run("accepts token from query", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetBySessionToken", mock.Anything, "session-token").Return(account, nil)
		f.accounts.On("ClearSessionToken", mock.Anything, account.ID).Return(nil)

		rec := f.do(t, http.MethodGet, "/logout?token=session-token", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("body token wins over header", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetBySessionToken", mock.Anything, "body-token").Return(account, nil)
		f.accounts.On("ClearSessionToken", mock.Anything, account.ID).Return(nil)

		req := httptest.NewRequest(http.MethodGet, "/logout", strings.NewReader(`{"token":"body-token"}`))
		req.Header.Set("x-access-token", "header-token")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token is 404", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/logout", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserEndpoints(t *testing.T) {
	account := &auth.Account{
		ID:       ulid.Make(),
		Username: "bob_smith",
		Email:    "bob@test.com",
		Active:   true,
	}

	t.Run("list pages accounts", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("List", mock.Anything, 2, 0).
			Return([]*auth.Account{account}, 5, nil)

		rec := f.do(t, http.MethodGet, "/users?limit=2&page=1", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, float64(5), data["total"])
		assert.Equal(t, float64(3), data["totalPages"])
		assert.Equal(t, "/users?limit=2&page=2", data["next"])
	})

	t.Run("get by id", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetByID", mock.Anything, account.ID).Return(account, nil)

		rec := f.do(t, http.MethodGet, "/users/"+account.ID.String(), "")

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "bob_smith", data["username"])
	})

	t.Run("malformed id is 404", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/users/not-a-ulid", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update email returns 204", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("GetByID", mock.Anything, account.ID).Return(account, nil)
		f.accounts.On("EmailExists", mock.Anything, "new@test.com").Return(false, nil)
		f.accounts.On("UpdateEmail", mock.Anything, account.ID, "new@test.com").Return(nil)

		rec := f.do(t, http.MethodPut, "/users/"+account.ID.String()+"/email",
			`{"email":"New@Test.com"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("update password returns 204", func(t *testing.T) {
		f := newFixture(t)
		f.hasher.On("Hash", "newpass99").Return("$argon2id$newhash", nil)
		f.accounts.On("UpdatePassword", mock.Anything, account.ID, "$argon2id$newhash").Return(nil)

		rec := f.do(t, http.MethodPut, "/users/"+account.ID.String()+"/password",
			`{"password":"newpass99"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("store failure is masked as internal error", func(t *testing.T) {
		f := newFixture(t)
		f.accounts.On("List", mock.Anything, 20, 0).
			Return(nil, 0, errors.New("connection refused"))

		rec := f.do(t, http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, "internal error", body["message"])
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestTaskEndpoints(t *testing.T) {
	accountID := ulid.Make()

	t.Run("create validates and stores", func(t *testing.T) {
		f := newFixture(t)
		f.tasks.On("Create", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)

		rec := f.do(t, http.MethodPost, "/task",
			`{"accountId":"`+accountID.String()+`","title":"Write report","status":"InProgress"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "Write report", data["title"])
		assert.Equal(t, "InProgress", data["status"])
	})

	t.Run("create rejects payload failing the schema", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/task",
			`{"accountId":"`+accountID.String()+`","title":"x","status":"Done"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get unknown task is 404", func(t *testing.T) {
		f := newFixture(t)
		id := ulid.Make()
		f.tasks.On("GetByID", mock.Anything, id).Return(nil, task.ErrNotFound)

		rec := f.do(t, http.MethodGet, "/task/"+id.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update keeps omitted fields", func(t *testing.T) {
		f := newFixture(t)
		stored := &task.Task{
			ID:          ulid.Make(),
			AccountID:   accountID,
			Title:       "Write report",
			Description: "quarterly numbers",
			Status:      task.StatusPending,
		}
		f.tasks.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)
		f.tasks.On("Update", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)

		rec := f.do(t, http.MethodPut, "/task",
			`{"id":"`+stored.ID.String()+`","status":"Completed"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, "Write report", data["title"])
		assert.Equal(t, "Completed", data["status"])
	})

	t.Run("delete soft-deletes", func(t *testing.T) {
		f := newFixture(t)
		id := ulid.Make()
		f.tasks.On("SoftDelete", mock.Anything, id).Return(nil)

		rec := f.do(t, http.MethodDelete, "/task/"+id.String(), "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "task deleted", decodeEnvelope(t, rec)["message"])
	})

	t.Run("list pages one account's tasks", func(t *testing.T) {
		f := newFixture(t)
		stored := &task.Task{ID: ulid.Make(), AccountID: accountID, Title: "Write report", Status: task.StatusPending}
		f.tasks.On("List", mock.Anything, accountID, 1, 1).
			Return([]*task.Task{stored}, 3, nil)

		rec := f.do(t, http.MethodPost, "/tasks",
			`{"accountId":"`+accountID.String()+`","limit":1,"page":2}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		data := decodeEnvelope(t, rec)["data"].(map[string]any)
		assert.Equal(t, float64(3), data["total"])
		assert.Equal(t, "/tasks?limit=1&page=3", data["next"])
		assert.Equal(t, "/tasks?limit=1&page=1", data["prev"])
	})

	t.Run("list rejects missing account id", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/tasks", `{"limit":10}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
