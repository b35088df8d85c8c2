// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package httpapi serves the Melodies account REST API.
//
// Every response is a JSON envelope {"success": bool, "message": string, ...}.
// Messages are Vietnamese, matching what the mobile and web clients display.
//
// Session establishment happens upstream: routes that act on the caller's
// own account read its id from a trusted header set by the authenticating
// proxy (X-Account-ID by default).
package httpapi
