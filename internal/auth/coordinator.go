// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/notify"
	"github.com/melodies/melodies/internal/verification"
)

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 10

// DefaultDisplayName addresses verification mail when no name is known.
const DefaultDisplayName = "bạn"

// CredentialStore is the account persistence the coordinator needs.
// *account.Store implements it.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*account.Account, error)
	FindByID(ctx context.Context, id ulid.ULID) (*account.Account, error)
	Create(ctx context.Context, in account.NewAccount) (*account.Account, error)
	VerifyPassword(a *account.Account, candidate string) (bool, error)
	UpdateFields(ctx context.Context, id ulid.ULID, patch account.Patch) (*account.Account, error)
	SetPassword(ctx context.Context, id ulid.ULID, plaintext string) error
	Touch(ctx context.Context, id ulid.ULID, at time.Time) error
	Delete(ctx context.Context, id ulid.ULID) error
}

// Coordinator implements the account flows.
type Coordinator struct {
	store    CredentialStore
	codes    verification.Cache
	notifier notify.Gateway
	logger   *slog.Logger
	now      func() time.Time

	// nil if no registry was provided
	otpOutcomes *prometheus.CounterVec
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for lastLogin.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithRegistry registers melodies_otp_verifications_total on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *Coordinator) {
		if reg == nil {
			return
		}
		c.otpOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "melodies_otp_verifications_total",
			Help: "Verification code checks by outcome",
		}, []string{"status"})
		reg.MustRegister(c.otpOutcomes)
	}
}

// NewCoordinator creates a Coordinator. All three collaborators are required.
func NewCoordinator(store CredentialStore, codes verification.Cache, notifier notify.Gateway, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if codes == nil {
		return nil, oops.Errorf("verification cache is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notification gateway is required")
	}

	c := &Coordinator{
		store:    store,
		codes:    codes,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
