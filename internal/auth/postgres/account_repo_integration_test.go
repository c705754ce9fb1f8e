// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/oklog/ulid/v2"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/auth/postgres"
	"github.com/taskhub/taskhub/internal/store"
	"github.com/taskhub/taskhub/pkg/errutil"
)

// setupPostgresContainer starts a PostgreSQL container with the schema applied.
func setupPostgresContainer() (*postgres.AccountRepository, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("taskhub_test"),
		tcpostgres.WithUsername("taskhub"),
		tcpostgres.WithPassword("taskhub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return postgres.NewAccountRepository(pool), cleanup, nil
}

func newStoredAccount(ctx context.Context, repo *postgres.AccountRepository, username, email string) *auth.Account {
	account, err := auth.NewAccount(username, email, "$argon2id$hash")
	Expect(err).NotTo(HaveOccurred())
	Expect(repo.Create(ctx, account)).To(Succeed())
	return account
}

var _ = Describe("AccountRepository", func() {
	var repo *postgres.AccountRepository
	var cleanup func()
	ctx := context.Background()

	BeforeEach(func() {
		var err error
		repo, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Create", func() {
		It("stores and retrieves an account", func() {
			account := newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")

			stored, err := repo.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Username).To(Equal("bob_smith"))
			Expect(stored.Email).To(Equal("bob@test.com"))
			Expect(stored.Active).To(BeFalse())
			Expect(stored.Role).To(Equal(auth.RoleVisitor))
		})

		It("rejects duplicate usernames via the unique index", func() {
			newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")

			dup, err := auth.NewAccount("bob_smith", "other@test.com", "$argon2id$hash")
			Expect(err).NotTo(HaveOccurred())
			err = repo.Create(ctx, dup)
			Expect(err).To(MatchError(auth.ErrDuplicateUsername))
		})

		It("rejects duplicate emails via the unique index", func() {
			newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")

			dup, err := auth.NewAccount("other_user", "bob@test.com", "$argon2id$hash")
			Expect(err).NotTo(HaveOccurred())
			err = repo.Create(ctx, dup)
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))
		})
	})

	Describe("GetByEmail", func() {
		It("matches case-insensitively", func() {
			account := newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")

			stored, err := repo.GetByEmail(ctx, "BOB@TEST.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(account.ID))
		})

		It("reports missing accounts", func() {
			_, err := repo.GetByEmail(ctx, "ghost@test.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("GetByUsernameOrEmail", func() {
		It("returns every colliding record", func() {
			first := newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")
			second := newStoredAccount(ctx, repo, "other_user", "other@test.com")

			matches, err := repo.GetByUsernameOrEmail(ctx, first.Username, second.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
		})
	})

	Describe("OTP lifecycle", func() {
		It("stores a passcode and clears it on activation", func() {
			account := newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")

			Expect(repo.SetOTP(ctx, account.ID, 123456)).To(Succeed())

			stored, err := repo.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.OTP).NotTo(BeNil())
			Expect(*stored.OTP).To(Equal(123456))

			Expect(repo.Activate(ctx, account.ID)).To(Succeed())

			stored, err = repo.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Active).To(BeTrue())
			Expect(stored.OTP).To(BeNil())
		})
	})

	Describe("session tokens", func() {
		It("records, resolves and clears the credential", func() {
			account := newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")

			Expect(repo.SetSessionToken(ctx, account.ID, "credential-1")).To(Succeed())

			stored, err := repo.GetBySessionToken(ctx, "credential-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(account.ID))

			Expect(repo.SetSessionToken(ctx, account.ID, "credential-2")).To(Succeed())
			_, err = repo.GetBySessionToken(ctx, "credential-1")
			Expect(err).To(MatchError(auth.ErrNotFound))

			Expect(repo.ClearSessionToken(ctx, account.ID)).To(Succeed())
			_, err = repo.GetBySessionToken(ctx, "credential-2")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("List", func() {
		It("pages in creation order with a total count", func() {
			for i := 0; i < 5; i++ {
				newStoredAccount(ctx, repo,
					"user_"+string(rune('a'+i))+"bcd",
					"user"+string(rune('a'+i))+"@test.com")
			}

			page, total, err := repo.List(ctx, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(5))
			Expect(page).To(HaveLen(2))
		})
	})

	Describe("concurrent registration", func() {
		It("admits exactly one of two racing registrations for the same email", func() {
			issuer, err := auth.NewTokenIssuer([]byte("integration-secret"), time.Hour)
			Expect(err).NotTo(HaveOccurred())
			svc, err := auth.NewService(repo, auth.NewArgon2idHasher(), issuer, nil)
			Expect(err).NotTo(HaveOccurred())

			// Both registrations pass the availability pre-check before either
			// row lands; the unique index must arbitrate.
			start := make(chan struct{})
			results := make(chan error, 2)
			for _, username := range []string{"bob_smith", "other_user"} {
				go func(username string) {
					defer GinkgoRecover()
					<-start
					_, err := svc.Register(ctx, username, "bob@test.com", "pass1234")
					results <- err
				}(username)
			}
			close(start)

			successes := 0
			var conflicts []error
			for i := 0; i < 2; i++ {
				if err := <-results; err == nil {
					successes++
				} else {
					conflicts = append(conflicts, err)
				}
			}

			Expect(successes).To(Equal(1))
			Expect(conflicts).To(HaveLen(1))
			Expect(errutil.Code(conflicts[0])).To(Equal("AUTH_EMAIL_TAKEN"))

			stored, err := repo.GetByEmail(ctx, "bob@test.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Email).To(Equal("bob@test.com"))
		})
	})

	Describe("updates", func() {
		It("updates email and password", func() {
			account := newStoredAccount(ctx, repo, "bob_smith", "bob@test.com")

			Expect(repo.UpdateEmail(ctx, account.ID, "new@test.com")).To(Succeed())
			Expect(repo.UpdatePassword(ctx, account.ID, "$argon2id$new")).To(Succeed())

			stored, err := repo.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Email).To(Equal("new@test.com"))
			Expect(stored.PasswordHash).To(Equal("$argon2id$new"))
		})

		It("reports updates against missing accounts", func() {
			err := repo.UpdateEmail(ctx, ulid.Make(), "ghost@test.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
