// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package auth

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/pkg/errutil"
)

// Registration is the input to Register.
type Registration struct {
	Email            string
	Password         string
	Name             string
	Birthday         string
	Gender           string
	Country          string
	MarketingConsent bool
	DataSharing      bool
}

// ProfilePatch lists profile changes. Empty fields are left unchanged.
type ProfilePatch struct {
	Name     string
	Email    string
	Gender   string
	Birthday string
	Country  string
}

// Register creates a verified account and sends the welcome mail. A failed
// welcome mail is logged and does not fail the registration.
func (c *Coordinator) Register(ctx context.Context, r Registration) (*account.Account, error) {
	email := account.NormalizeEmail(r.Email)
	for _, f := range []struct{ name, value string }{
		{"email", email},
		{"password", r.Password},
		{"name", strings.TrimSpace(r.Name)},
		{"birthday", r.Birthday},
		{"gender", r.Gender},
	} {
		if f.value == "" {
			return nil, validationError(CodeMissingFields, f.name)
		}
	}
	if err := checkPasswordLength(r.Password, "password"); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateGender(r.Gender); err != nil {
		return nil, err
	}

	// Fast path only; the storage constraint decides races.
	if exists, err := c.emailTaken(ctx, email); err != nil {
		return nil, err
	} else if exists {
		return nil, conflictError(email)
	}

	a, err := c.store.Create(ctx, account.NewAccount{
		Email:            email,
		Password:         r.Password,
		Name:             r.Name,
		Birthday:         r.Birthday,
		Gender:           r.Gender,
		Country:          r.Country,
		MarketingConsent: r.MarketingConsent,
		DataSharing:      r.DataSharing,
		EmailVerified:    true,
	})
	if err != nil {
		if account.IsConflict(err) {
			return nil, conflictError(email)
		}
		return nil, internalError(CodeStorageFailed, "create account", err)
	}

	c.logger.InfoContext(ctx, "account registered", "account_id", a.ID.String())

	if err := c.notifier.SendWelcome(ctx, a.Email, a.Name); err != nil {
		errutil.LogWarnContext(ctx, c.logger, "welcome email failed", err)
	}
	return a, nil
}

// Login checks credentials and records the login time. Failures change nothing.
func (c *Coordinator) Login(ctx context.Context, email, password string) (*account.Account, error) {
	email = account.NormalizeEmail(email)
	if email == "" {
		return nil, validationError(CodeMissingFields, "email")
	}
	if password == "" {
		return nil, validationError(CodeMissingFields, "password")
	}

	a, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		if account.IsNotFound(err) {
			return nil, authenticationError(FailureUnknownEmail, email)
		}
		return nil, internalError(CodeStorageFailed, "find account by email", err)
	}

	if err := c.checkPassword(a, password); err != nil {
		return nil, err
	}

	at := c.now().UTC()
	if err := c.store.Touch(ctx, a.ID, at); err != nil {
		return nil, internalError(CodeStorageFailed, "record login", err)
	}
	a.LastLogin = &at
	return a, nil
}

// CheckEmailExists reports whether an account uses email.
func (c *Coordinator) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	email = account.NormalizeEmail(email)
	if email == "" {
		return false, validationError(CodeMissingFields, "email")
	}
	return c.emailTaken(ctx, email)
}

// GetAccount returns the account with id.
func (c *Coordinator) GetAccount(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	return c.findByID(ctx, id)
}

// ResolveAccountID picks the account a profile or delete request targets:
// rawID when given, otherwise the account currently registered under email.
// An unparseable id is reported as not found.
func (c *Coordinator) ResolveAccountID(ctx context.Context, rawID, email string) (ulid.ULID, error) {
	if rawID != "" {
		id, err := ulid.ParseStrict(rawID)
		if err != nil {
			return ulid.ULID{}, notFoundError("id", rawID)
		}
		return id, nil
	}

	email = account.NormalizeEmail(email)
	if email == "" {
		return ulid.ULID{}, validationError(CodeMissingFields, "userId")
	}
	a, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		if account.IsNotFound(err) {
			return ulid.ULID{}, notFoundError("email", email)
		}
		return ulid.ULID{}, internalError(CodeStorageFailed, "find account by email", err)
	}
	return a.ID, nil
}

// UpdateProfile applies the non-empty fields of p.
func (c *Coordinator) UpdateProfile(ctx context.Context, id ulid.ULID, p ProfilePatch) (*account.Account, error) {
	current, err := c.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var patch account.Patch
	if p.Email != "" {
		email := account.NormalizeEmail(p.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != current.Email {
			other, err := c.store.FindByEmail(ctx, email)
			switch {
			case err == nil && other.ID != id:
				return nil, conflictError(email)
			case err != nil && !account.IsNotFound(err):
				return nil, internalError(CodeStorageFailed, "find account by email", err)
			}
		}
		patch.Email = &email
	}
	if p.Gender != "" {
		if err := validateGender(p.Gender); err != nil {
			return nil, err
		}
		patch.Gender = &p.Gender
	}
	if p.Name != "" {
		patch.Name = &p.Name
	}
	if p.Birthday != "" {
		patch.Birthday = &p.Birthday
	}
	if p.Country != "" {
		patch.Country = &p.Country
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := c.store.UpdateFields(ctx, id, patch)
	switch {
	case err == nil:
		return updated, nil
	case account.IsNotFound(err):
		return nil, notFoundError("id", id.String())
	case account.IsConflict(err):
		return nil, conflictError(*patch.Email)
	default:
		return nil, internalError(CodeStorageFailed, "update profile", err)
	}
}

// DeleteAccount removes the account after confirming its password.
func (c *Coordinator) DeleteAccount(ctx context.Context, id ulid.ULID, password string) error {
	if password == "" {
		return validationError(CodeMissingFields, "password")
	}
	a, err := c.findByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.checkPassword(a, password); err != nil {
		return err
	}

	if err := c.store.Delete(ctx, id); err != nil {
		if account.IsNotFound(err) {
			return notFoundError("id", id.String())
		}
		return internalError(CodeStorageFailed, "delete account", err)
	}
	c.logger.InfoContext(ctx, "account deleted", "account_id", id.String())
	return nil
}

// ChangePassword replaces the password after confirming the old one. The new
// password's length is checked before anything is read.
func (c *Coordinator) ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return validationError(CodeMissingFields, "oldPassword")
	}
	if newPassword == "" {
		return validationError(CodeMissingFields, "newPassword")
	}
	if err := checkPasswordLength(newPassword, "newPassword"); err != nil {
		return err
	}

	a, err := c.findByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.checkPassword(a, oldPassword); err != nil {
		return err
	}

	if err := c.store.SetPassword(ctx, id, newPassword); err != nil {
		if account.IsNotFound(err) {
			return notFoundError("id", id.String())
		}
		return internalError(CodeStorageFailed, "set password", err)
	}
	return nil
}

func (c *Coordinator) findByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	a, err := c.store.FindByID(ctx, id)
	if err != nil {
		if account.IsNotFound(err) {
			return nil, notFoundError("id", id.String())
		}
		return nil, internalError(CodeStorageFailed, "find account by id", err)
	}
	return a, nil
}

func (c *Coordinator) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := c.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case account.IsNotFound(err):
		return false, nil
	default:
		return false, internalError(CodeStorageFailed, "find account by email", err)
	}
}

func (c *Coordinator) checkPassword(a *account.Account, candidate string) error {
	ok, err := c.store.VerifyPassword(a, candidate)
	if err != nil {
		return internalError(CodeStorageFailed, "verify password", err)
	}
	if !ok {
		return authenticationError(FailureBadPassword, a.Email)
	}
	return nil
}

func checkPasswordLength(password, field string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return validationError(CodePasswordTooShort, field)
	}
	return nil
}

func validateEmail(email string) error {
	if err := account.ValidateEmail(email); err != nil {
		return validationError(CodeInvalidEmail, "email")
	}
	return nil
}

func validateGender(gender string) error {
	if err := account.ValidateGender(gender); err != nil {
		return validationError(CodeInvalidGender, "gender")
	}
	return nil
}
