// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package account

import "errors"

var (
	// ErrNotFound is returned when the requested account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrConflict is returned when an email is already taken by another account.
	ErrConflict = errors.New("email already registered")

	// ErrInvalid is returned when account fields fail validation.
	ErrInvalid = errors.New("invalid account data")
)
