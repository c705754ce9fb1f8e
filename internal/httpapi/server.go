// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package httpapi exposes the account and task operations over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/task"
)

// Options configure the API server.
type Options struct {
	Addr      string
	Accounts  *auth.Service
	OTP       *auth.OTPManager
	Tasks     *task.Service
	PageLimit int
	Logger    *slog.Logger
	Metrics   *observability.Metrics // optional
}

// Server is the public HTTP API server.
type Server struct {
	addr       string
	accounts   *auth.Service
	otp        *auth.OTPManager
	tasks      *task.Service
	pageLimit  int
	logger     *slog.Logger
	metrics    *observability.Metrics
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the API server.
func NewServer(opts Options) (*Server, error) {
	if opts.Accounts == nil {
		return nil, oops.Errorf("accounts service is required")
	}
	if opts.OTP == nil {
		return nil, oops.Errorf("otp manager is required")
	}
	if opts.Tasks == nil {
		return nil, oops.Errorf("tasks service is required")
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		addr:      opts.Addr,
		accounts:  opts.Accounts,
		otp:       opts.OTP,
		tasks:     opts.Tasks,
		pageLimit: opts.PageLimit,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/user", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/sendotp", s.handleSendOTP).Methods(http.MethodPost)
	r.HandleFunc("/validateotp", s.handleValidateOTP).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)

	r.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/email", s.handleUpdateEmail).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/password", s.handleUpdatePassword).Methods(http.MethodPut)

	r.HandleFunc("/task", s.handleCreateTask).Methods(http.MethodPost)
	r.HandleFunc("/task", s.handleUpdateTask).Methods(http.MethodPut)
	r.HandleFunc("/task/{id}", s.handleGetTask).Methods(http.MethodGet)
	r.HandleFunc("/task/{id}", s.handleDeleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodPost)

	return r
}

// instrument records request counts and latencies per route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start begins serving the API. It returns an error channel that receives
// any serve error; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
