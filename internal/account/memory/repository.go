// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package memory provides an in-process account repository for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/melodies/melodies/internal/account"
)

// Repository keeps accounts in maps guarded by one mutex, so the email
// uniqueness check and the write happen atomically.
type Repository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*account.Account
	byEmail map[string]ulid.ULID
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		byID:    make(map[ulid.ULID]*account.Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new account.
func (r *Repository) Create(_ context.Context, a *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[a.Email]; taken {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").With("email", a.Email).Wrap(account.ErrConflict)
	}
	stored := *a
	r.byID[a.ID] = &stored
	r.byEmail[a.Email] = a.ID
	return nil
}

// GetByID returns a copy of the account with the given id.
func (r *Repository) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	found := *a
	return &found, nil
}

// GetByEmail returns a copy of the account with the given email.
func (r *Repository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(account.ErrNotFound)
	}
	found := *r.byID[id]
	return &found, nil
}

// Update writes the profile fields of an existing account, moving its email
// index entry if needed. The password hash and last login are left alone.
func (r *Repository) Update(_ context.Context, a *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[a.ID]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", a.ID.String()).Wrap(account.ErrNotFound)
	}
	if owner, taken := r.byEmail[a.Email]; taken && owner != a.ID {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").With("email", a.Email).Wrap(account.ErrConflict)
	}

	if current.Email != a.Email {
		delete(r.byEmail, current.Email)
		r.byEmail[a.Email] = a.ID
	}
	current.Email = a.Email
	current.Name = a.Name
	current.Birthday = a.Birthday
	current.Gender = a.Gender
	current.Country = a.Country
	current.MarketingConsent = a.MarketingConsent
	current.DataSharing = a.DataSharing
	current.IsActive = a.IsActive
	current.IsEmailVerified = a.IsEmailVerified
	current.UpdatedAt = a.UpdatedAt
	return nil
}

// UpdatePassword replaces the password hash.
func (r *Repository) UpdatePassword(_ context.Context, id ulid.ULID, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	a.PasswordHash = hash
	a.UpdatedAt = at
	return nil
}

// TouchLastLogin records the login time.
func (r *Repository) TouchLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	a.LastLogin = &at
	return nil
}

// Delete removes the account.
func (r *Repository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	delete(r.byEmail, a.Email)
	delete(r.byID, id)
	return nil
}

// Len returns the number of stored accounts.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

var _ account.Repository = (*Repository)(nil)
