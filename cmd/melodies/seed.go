// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package main

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/account/postgres"
	"github.com/melodies/melodies/internal/auth"
	"github.com/melodies/melodies/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
	account account.NewAccount
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a verified demo account",
		Long: `Creates a verified account for local development and demos.
This command is idempotent - an existing account with the same email is left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	f.StringVar(&cfg.account.Email, "email", "demo@melodies.test", "account email")
	f.StringVar(&cfg.account.Password, "password", "", "account password (required)")
	f.StringVar(&cfg.account.Name, "name", "Demo Listener", "display name")
	f.StringVar(&cfg.account.Birthday, "birthday", "2000-01-01", "birthday")
	f.StringVar(&cfg.account.Gender, "gender", account.GenderUndisclosed, "gender")
	f.StringVar(&cfg.account.Country, "country", "VN", "country")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	if utf8.RuneCountInString(cfg.account.Password) < auth.MinPasswordLength {
		return oops.Code("INVALID_ARGUMENT").Errorf("--password must have at least %d characters", auth.MinPasswordLength)
	}
	appCfg, err := databaseConfig(cmd)
	if err != nil {
		return err
	}

	// cmd.Context() respects SIGINT/SIGTERM
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, store.PoolConfig{URL: appCfg.Database.URL}, nil)
	if err != nil {
		//nolint:wrapcheck // store errors carry their own codes
		return err
	}
	defer pool.Close()

	hasher := account.NewArgon2idHasher(appCfg.Hasher.HashParams())
	return seedAccount(ctx, cmd, postgres.NewAccountRepository(pool), hasher, cfg.account)
}

// seedAccount creates in unless an account with its email exists.
func seedAccount(ctx context.Context, cmd *cobra.Command, repo account.Repository, hasher account.PasswordHasher, in account.NewAccount) error {
	accounts, err := account.NewStore(repo, hasher)
	if err != nil {
		//nolint:wrapcheck // constructor error is already descriptive
		return err
	}

	existing, err := accounts.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		cmd.Printf("Account %s already exists (%s), skipping seed\n", existing.Email, existing.ID)
		return nil
	case !account.IsNotFound(err):
		return oops.Code("SEED_FAILED").With("operation", "look up account").Wrap(err)
	}

	in.EmailVerified = true
	created, err := accounts.Create(ctx, in)
	if err != nil {
		if account.IsConflict(err) {
			cmd.Printf("Account %s already exists, skipping seed\n", account.NormalizeEmail(in.Email))
			return nil
		}
		return oops.Code("SEED_FAILED").With("operation", "create account").Wrap(err)
	}

	cmd.Printf("Created account %s (%s)\n", created.Email, created.ID)
	return nil
}
