// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package account

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Store is the credential store used by the auth flows.
type Store struct {
	repo   Repository
	hasher PasswordHasher
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store. Both dependencies are required.
func NewStore(repo Repository, hasher PasswordHasher, opts ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	s := &Store{repo: repo, hasher: hasher, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FindByEmail looks up an account by email, case-insensitively.
func (s *Store) FindByEmail(ctx context.Context, email string) (*Account, error) {
	//nolint:wrapcheck // repository errors carry their own codes
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// FindByID looks up an account by id.
func (s *Store) FindByID(ctx context.Context, id ulid.ULID) (*Account, error) {
	//nolint:wrapcheck // repository errors carry their own codes
	return s.repo.GetByID(ctx, id)
}

// Create validates and persists a new account with a freshly hashed password.
func (s *Store) Create(ctx context.Context, in NewAccount) (*Account, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateGender(in.Gender); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_HASH_FAILED").With("email", email).Wrap(err)
	}

	now := s.now().UTC()
	a := &Account{
		ID:               ulid.Make(),
		Email:            email,
		PasswordHash:     hash,
		Name:             in.Name,
		Birthday:         in.Birthday,
		Gender:           in.Gender,
		Country:          in.Country,
		MarketingConsent: in.MarketingConsent,
		DataSharing:      in.DataSharing,
		IsActive:         true,
		IsEmailVerified:  in.EmailVerified,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		//nolint:wrapcheck // repository errors carry their own codes
		return nil, err
	}
	return a, nil
}

// VerifyPassword reports whether candidate matches the account's stored hash.
func (s *Store) VerifyPassword(a *Account, candidate string) (bool, error) {
	ok, err := s.hasher.Verify(candidate, a.PasswordHash)
	if err != nil {
		return false, oops.Code("ACCOUNT_VERIFY_FAILED").With("id", a.ID.String()).Wrap(err)
	}
	return ok, nil
}

// UpdateFields applies patch to the account. A changed email is normalized
// and its uniqueness is re-checked by the repository.
func (s *Store) UpdateFields(ctx context.Context, id ulid.ULID, patch Patch) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		//nolint:wrapcheck // repository errors carry their own codes
		return nil, err
	}

	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		a.Email = email
	}
	if patch.Gender != nil {
		if err := ValidateGender(*patch.Gender); err != nil {
			return nil, err
		}
		a.Gender = *patch.Gender
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.Birthday != nil {
		a.Birthday = *patch.Birthday
	}
	if patch.Country != nil {
		a.Country = *patch.Country
	}
	a.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, a); err != nil {
		//nolint:wrapcheck // repository errors carry their own codes
		return nil, err
	}
	return a, nil
}

// SetPassword replaces the account's password hash.
func (s *Store) SetPassword(ctx context.Context, id ulid.ULID, plaintext string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return oops.Code("ACCOUNT_HASH_FAILED").With("id", id.String()).Wrap(err)
	}
	//nolint:wrapcheck // repository errors carry their own codes
	return s.repo.UpdatePassword(ctx, id, hash, s.now().UTC())
}

// Touch records a successful login at the given time.
func (s *Store) Touch(ctx context.Context, id ulid.ULID, at time.Time) error {
	//nolint:wrapcheck // repository errors carry their own codes
	return s.repo.TouchLastLogin(ctx, id, at.UTC())
}

// Delete removes the account permanently.
func (s *Store) Delete(ctx context.Context, id ulid.ULID) error {
	//nolint:wrapcheck // repository errors carry their own codes
	return s.repo.Delete(ctx, id)
}

// IsNotFound reports whether err means the account does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err means the email is taken.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
