// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package auth coordinates the Melodies account flows.
//
// # Flows
//
// Coordinator ties three collaborators together:
//   - a CredentialStore (account.Store) for accounts and passwords
//   - a verification.Cache for the six-digit email codes
//   - a notify.Gateway for verification and welcome emails
//
// Registration and code verification are independent: Register does not
// require a prior VerifyOTP. Clients run send-otp, verify-otp and register in
// sequence, but the coordinator does not enforce the order.
//
// # Errors
//
// Every error returned by Coordinator matches exactly one of ErrValidation,
// ErrConflict, ErrNotFound, ErrAuthentication or ErrInternal with errors.Is,
// and carries an oops code naming the precise failure. FailureOf extracts
// the authentication failure kind.
package auth
