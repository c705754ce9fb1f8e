// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskhub/taskhub/internal/auth"
	authpg "github.com/taskhub/taskhub/internal/auth/postgres"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/httpapi"
	"github.com/taskhub/taskhub/internal/logging"
	"github.com/taskhub/taskhub/internal/mail"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/store"
	"github.com/taskhub/taskhub/internal/task"
	taskpg "github.com/taskhub/taskhub/internal/task/postgres"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskHub API server",
		Long: `Start the HTTP API server plus the observability server
(Prometheus metrics and health probes).`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("taskhub", version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	issuer, err := auth.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)
	if err != nil {
		return err
	}

	var mailer mail.Mailer
	if cfg.SMTP.Host != "" {
		mailer, err = mail.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		if err != nil {
			return err
		}
	} else {
		slog.Warn("smtp host not configured, passcodes will be logged instead of mailed")
		mailer = mail.NewLogMailer(slog.Default())
	}

	accounts := authpg.NewAccountRepository(pool)
	tasks := taskpg.NewTaskRepository(pool)

	accountSvc, err := auth.NewService(accounts, auth.NewArgon2idHasher(), issuer, slog.Default())
	if err != nil {
		return err
	}
	otpMgr, err := auth.NewOTPManager(accounts, mailer, slog.Default())
	if err != nil {
		return err
	}
	taskSvc, err := task.NewService(tasks, slog.Default())
	if err != nil {
		return err
	}

	obs := observability.NewServer(cfg.MetricsAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}
	defer shutdown(obs.Stop)

	api, err := httpapi.NewServer(httpapi.Options{
		Addr:      cfg.ListenAddr,
		Accounts:  accountSvc,
		OTP:       otpMgr,
		Tasks:     taskSvc,
		PageLimit: cfg.PageLimit,
		Logger:    slog.Default(),
		Metrics:   obs.Metrics(),
	})
	if err != nil {
		return err
	}
	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}
	defer shutdown(api.Stop)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		return nil
	case err := <-apiErrCh:
		if err != nil {
			return oops.With("server", "api").Wrap(err)
		}
		return nil
	case err := <-obsErrCh:
		if err != nil {
			return oops.With("server", "observability").Wrap(err)
		}
		return nil
	}
}

func shutdown(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
