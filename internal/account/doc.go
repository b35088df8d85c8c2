// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package account owns Melodies credentials: one Account per normalized email.
//
// # Storage
//
// Repository implementations (postgres, memory) enforce email uniqueness
// atomically and report a duplicate as ErrConflict. Callers may check for an
// existing email first to fail fast, but only the repository is authoritative.
//
// # Store
//
// Store wraps a Repository and a PasswordHasher. It normalizes emails, hashes
// plaintext passwords and never exposes a hash through Account.Public.
package account
