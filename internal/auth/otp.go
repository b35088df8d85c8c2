// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package auth

import (
	"context"
	"strings"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/verification"
)

// Verified is the result of a successful VerifyOTP. Nothing is persisted.
type Verified struct {
	Email string
}

// SendOTP issues a code for an unregistered email and mails it. The code is
// cached before sending, so a failed send leaves a valid but undelivered code.
func (c *Coordinator) SendOTP(ctx context.Context, email, displayName string) error {
	email = account.NormalizeEmail(email)
	if email == "" {
		return validationError(CodeMissingFields, "email")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = DefaultDisplayName
	}

	if exists, err := c.emailTaken(ctx, email); err != nil {
		return err
	} else if exists {
		return conflictError(email)
	}

	code, err := c.codes.Issue(ctx, email)
	if err != nil {
		return internalError(CodeStorageFailed, "issue code", err)
	}
	if err := c.notifier.SendVerificationCode(ctx, email, code, displayName); err != nil {
		return internalError(CodeNotificationFailed, "send verification code", err)
	}

	c.logger.DebugContext(ctx, "verification code sent", "email", email)
	return nil
}

// ResendOTP is SendOTP with the default display name.
func (c *Coordinator) ResendOTP(ctx context.Context, email string) error {
	return c.SendOTP(ctx, email, DefaultDisplayName)
}

// VerifyOTP checks code against the pending code for email. A wrong code
// keeps the pending code so the user can retry.
func (c *Coordinator) VerifyOTP(ctx context.Context, email, code string) (Verified, error) {
	email = account.NormalizeEmail(email)
	if email == "" {
		return Verified{}, validationError(CodeMissingFields, "email")
	}
	if code == "" {
		return Verified{}, validationError(CodeMissingFields, "otp")
	}

	status, err := c.codes.Verify(ctx, email, code)
	if err != nil {
		return Verified{}, internalError(CodeStorageFailed, "verify code", err)
	}
	c.recordOTP(status)

	switch status {
	case verification.StatusSuccess:
		return Verified{Email: email}, nil
	case verification.StatusNoPendingCode:
		return Verified{}, authenticationError(FailureNoPendingOTP, email)
	case verification.StatusExpired:
		return Verified{}, authenticationError(FailureExpiredOTP, email)
	default:
		return Verified{}, authenticationError(FailureWrongOTP, email)
	}
}

func (c *Coordinator) recordOTP(status verification.Status) {
	if c.otpOutcomes != nil {
		c.otpOutcomes.WithLabelValues(status.String()).Inc()
	}
}
