// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package verification issues and checks the six-digit email codes that gate
// registration. Entries are ephemeral: one per email, TTL-bounded and removed
// once a code is used or found expired.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Defaults for code lifetime and housekeeping.
const (
	DefaultTTL = 10 * time.Minute

	// DefaultExpiredRetention is how long an expired entry is kept so a late
	// Verify can still report Expired rather than NoPendingCode.
	DefaultExpiredRetention = time.Hour

	// DefaultSweepInterval is how often MemoryCache drops stale entries.
	DefaultSweepInterval = time.Minute

	codeSpace = 1_000_000
)

// Status is the outcome of Verify.
type Status int

// Verify outcomes.
const (
	StatusSuccess Status = iota + 1
	StatusNoPendingCode
	StatusExpired
	StatusMismatch
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoPendingCode:
		return "no_pending_code"
	case StatusExpired:
		return "expired"
	case StatusMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Cache holds at most one active code per email. Implementations make the
// check and the removal in Verify a single atomic step. Keys are used as
// given; callers normalize emails first.
type Cache interface {
	// Issue generates a fresh code for email, replacing any existing entry.
	Issue(ctx context.Context, email string) (string, error)

	// Verify checks candidate against the stored code. A mismatch keeps the
	// entry; success and expiry remove it.
	Verify(ctx context.Context, email, candidate string) (Status, error)

	// Discard removes any entry for email. It is idempotent.
	Discard(ctx context.Context, email string) error
}

// CodeGenerator returns a new verification code.
type CodeGenerator func() (string, error)

// RandomCode returns a uniformly distributed code in 000000-999999.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// options is shared by the Cache implementations.
type options struct {
	ttl       time.Duration
	retention time.Duration
	sweep     time.Duration
	now       func() time.Time
	generate  CodeGenerator
}

func defaultOptions() options {
	return options{
		ttl:       DefaultTTL,
		retention: DefaultExpiredRetention,
		sweep:     DefaultSweepInterval,
		now:       time.Now,
		generate:  RandomCode,
	}
}

// Option configures a Cache.
type Option func(*options)

// WithTTL sets how long an issued code stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithExpiredRetention sets how long expired entries are kept before housekeeping drops them.
func WithExpiredRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithSweepInterval sets the MemoryCache housekeeping period.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweep = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithCodeGenerator overrides code generation, for deterministic tests.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(o *options) {
		o.generate = gen
	}
}
