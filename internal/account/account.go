// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package account

import (
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Gender values accepted on an account. The localized forms are what the
// mobile client sends when its UI language is Vietnamese.
const (
	GenderMale          = "male"
	GenderFemale        = "female"
	GenderNonBinary     = "non-binary"
	GenderUndisclosed   = "prefer-not-to-say"
	GenderMaleVI        = "Nam"
	GenderFemaleVI      = "Nữ"
	GenderOtherVI       = "Khác"
	GenderUndisclosedVI = "Không muốn tiết lộ"
)

var validGenders = map[string]struct{}{
	GenderMale:          {},
	GenderFemale:        {},
	GenderNonBinary:     {},
	GenderUndisclosed:   {},
	GenderMaleVI:        {},
	GenderFemaleVI:      {},
	GenderOtherVI:       {},
	GenderUndisclosedVI: {},
}

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Account is a registered Melodies user.
type Account struct {
	ID               ulid.ULID
	Email            string
	PasswordHash     string
	Name             string
	Birthday         string
	Gender           string
	Country          string
	MarketingConsent bool
	DataSharing      bool
	IsActive         bool
	IsEmailVerified  bool
	LastLogin        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Public is the client-facing view of an Account. It never carries the hash.
type Public struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Birthday         string     `json:"birthday"`
	Gender           string     `json:"gender"`
	Country          string     `json:"country,omitempty"`
	MarketingConsent bool       `json:"marketingConsent"`
	DataSharing      bool       `json:"dataSharing"`
	IsActive         bool       `json:"isActive"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Public returns the account without credential material.
func (a *Account) Public() Public {
	return Public{
		ID:               a.ID.String(),
		Email:            a.Email,
		Name:             a.Name,
		Birthday:         a.Birthday,
		Gender:           a.Gender,
		Country:          a.Country,
		MarketingConsent: a.MarketingConsent,
		DataSharing:      a.DataSharing,
		IsActive:         a.IsActive,
		IsEmailVerified:  a.IsEmailVerified,
		LastLogin:        a.LastLogin,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// NewAccount holds the fields needed to create an account.
type NewAccount struct {
	Email            string
	Password         string
	Name             string
	Birthday         string
	Gender           string
	Country          string
	MarketingConsent bool
	DataSharing      bool
	EmailVerified    bool
}

// Patch lists profile fields to change. Nil fields are left untouched.
type Patch struct {
	Name     *string
	Email    *string
	Gender   *string
	Birthday *string
	Country  *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Gender == nil && p.Birthday == nil && p.Country == nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address shape. The input should already be normalized.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return oops.Code("ACCOUNT_INVALID_EMAIL").With("email", email).Wrap(ErrInvalid)
	}
	return nil
}

// ValidateGender checks gender against the accepted values.
func ValidateGender(gender string) error {
	if _, ok := validGenders[gender]; !ok {
		return oops.Code("ACCOUNT_INVALID_GENDER").With("gender", gender).Wrap(ErrInvalid)
	}
	return nil
}
