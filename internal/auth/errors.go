// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/pkg/errutil"
)

// Error categories. Test with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("email already registered")
	ErrNotFound       = errors.New("account not found")
	ErrAuthentication = errors.New("authentication failed")
	ErrInternal       = errors.New("internal error")
)

// Failure is the specific reason behind an ErrAuthentication.
type Failure string

// Authentication failure kinds. Each is also the error's oops code.
const (
	FailureUnknownEmail Failure = "AUTH_UNKNOWN_EMAIL"
	FailureBadPassword  Failure = "AUTH_BAD_PASSWORD"
	FailureNoPendingOTP Failure = "AUTH_NO_PENDING_OTP"
	FailureExpiredOTP   Failure = "AUTH_EXPIRED_OTP"
	FailureWrongOTP     Failure = "AUTH_WRONG_OTP"
)

// Validation and other codes.
const (
	CodeMissingFields      = "AUTH_MISSING_FIELDS"
	CodePasswordTooShort   = "AUTH_PASSWORD_TOO_SHORT"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeInvalidGender      = "AUTH_INVALID_GENDER"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeAccountNotFound    = "AUTH_ACCOUNT_NOT_FOUND"
	CodeNotificationFailed = "AUTH_NOTIFICATION_FAILED"
	CodeStorageFailed      = "AUTH_STORAGE_FAILED"
)

// FailureOf returns the authentication failure kind of err, if err is an
// ErrAuthentication.
func FailureOf(err error) (Failure, bool) {
	if !errors.Is(err, ErrAuthentication) {
		return "", false
	}
	code := errutil.Code(err)
	if code == "" {
		return "", false
	}
	return Failure(code), true
}

func validationError(code, field string) error {
	return oops.Code(code).With("field", field).Wrap(ErrValidation)
}

func conflictError(email string) error {
	return oops.Code(CodeEmailTaken).
		With("email", email).
		Wrap(fmt.Errorf("%w: %w", ErrConflict, account.ErrConflict))
}

func notFoundError(key string, value any) error {
	return oops.Code(CodeAccountNotFound).
		With(key, value).
		Wrap(fmt.Errorf("%w: %w", ErrNotFound, account.ErrNotFound))
}

func authenticationError(f Failure, email string) error {
	return oops.Code(string(f)).With("email", email).Wrap(ErrAuthentication)
}

// internalError records the cause in the error context instead of the chain,
// so the outermost auth code is the one Code reports.
func internalError(code, operation string, cause error) error {
	return oops.Code(code).
		With("operation", operation).
		With("cause", cause.Error()).
		With("cause_code", errutil.Code(cause)).
		Wrap(ErrInternal)
}
