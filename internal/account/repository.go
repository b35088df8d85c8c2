// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package account

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Repository persists accounts. Emails passed in are already normalized.
//
// Create and Update must reject an email held by a different account with an
// error wrapping ErrConflict, atomically with the write. Lookups and writes
// against a missing id return an error wrapping ErrNotFound.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	UpdatePassword(ctx context.Context, id ulid.ULID, hash string, at time.Time) error
	TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error
	Delete(ctx context.Context, id ulid.ULID) error
}
