// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/pagination"
)

// decodeJSON reads the request body into dst. On malformed input it writes the
// 400 response itself and returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, s.logger, oops.Code("REQUEST_INVALID").
			With("operation", "decode request body").
			Wrap(err))
		return false
	}
	return true
}

// pageParams reads limit and page from the query string. A missing or
// unparsable limit falls back to the server's configured page size.
func (s *Server) pageParams(r *http.Request) pagination.Params {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if limit <= 0 {
		limit = s.pageLimit
	}
	return pagination.Normalize(limit, page)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		missingField(w, s.logger, "username")
		return
	}
	if req.Email == "" {
		missingField(w, s.logger, "email")
		return
	}
	if req.Password == "" {
		missingField(w, s.logger, "password")
		return
	}

	account, err := s.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusCreated, account.Public())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		missingField(w, s.logger, "email")
		return
	}
	if req.Password == "" {
		missingField(w, s.logger, "password")
		return
	}

	result, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordLogin("error")
		writeError(w, s.logger, err)
		return
	}

	// A wrong password is reported in-band with an empty token.
	if result.Token == "" {
		s.recordLogin("failure")
	} else {
		s.recordLogin("success")
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		missingField(w, s.logger, "email")
		return
	}

	if err := s.otp.Request(r.Context(), req.Email); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if s.metrics != nil {
		s.metrics.OTPsSentTotal.Inc()
	}
	writeMessage(w, http.StatusOK, "OTP has been sent")
}

func (s *Server) handleValidateOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   int    `json:"otp"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		missingField(w, s.logger, "email")
		return
	}
	if req.OTP == 0 {
		missingField(w, s.logger, "otp")
		return
	}

	result, err := s.otp.Validate(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// handleLogout ends the session named by the credential. The credential may
// arrive in the JSON body, the token query parameter, or the x-access-token
// header; the first one present wins.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := s.logoutToken(r)

	if err := s.accounts.Logout(r.Context(), token); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out successfully")
}

func (s *Server) logoutToken(r *http.Request) string {
	var req struct {
		Token string `json:"token"`
	}
	if r.Body != nil {
		// Best effort; GET requests usually carry no body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Token != "" {
		return req.Token
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return r.Header.Get("x-access-token")
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	params := s.pageParams(r)

	accounts, total, err := s.accounts.List(r.Context(), params.Limit, params.Offset())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	items := make([]auth.PublicAccount, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, account.Public())
	}
	writeData(w, http.StatusOK, pagination.NewPage(items, total, params, r.URL.Path))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.accountID(w, r)
	if !ok {
		return
	}

	account, err := s.accounts.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, account.Public())
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := s.accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		missingField(w, s.logger, "email")
		return
	}

	if err := s.accounts.UpdateEmail(r.Context(), id, req.Email); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		missingField(w, s.logger, "password")
		return
	}

	if err := s.accounts.UpdatePassword(r.Context(), id, req.Password); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// accountID parses the id path variable. A malformed id is reported as not
// found; identifiers are opaque to clients.
func (s *Server) accountID(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := ulid.Parse(raw)
	if err != nil {
		writeError(w, s.logger, oops.Code("AUTH_ACCOUNT_NOT_FOUND").
			With("account_id", raw).
			Errorf("account not found"))
		return ulid.ULID{}, false
	}
	return id, true
}
