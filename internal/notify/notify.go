// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package notify delivers the account emails: verification codes and the
// welcome message sent after registration.
package notify

import "context"

// Gateway sends account notifications.
type Gateway interface {
	// SendVerificationCode mails code to email, addressed to displayName.
	SendVerificationCode(ctx context.Context, email, code, displayName string) error

	// SendWelcome mails the post-registration greeting.
	SendWelcome(ctx context.Context, email, displayName string) error
}

// Kind identifies a notification type in templates and metrics.
type Kind string

// Notification kinds.
const (
	KindVerification Kind = "verification"
	KindWelcome      Kind = "welcome"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	From    Address
	To      string
	Subject string
	HTML    string
}

// Address is a display name plus mailbox.
type Address struct {
	Name  string
	Email string
}

// Sender delivers a rendered Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
