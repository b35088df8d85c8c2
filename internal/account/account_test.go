// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package account_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/pkg/errutil"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "u@test.com", account.NormalizeEmail("  U@Test.COM \t"))
	assert.Equal(t, "", account.NormalizeEmail("   "))
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"u@test.com", "first.last@sub.example.vn"}
	for _, email := range valid {
		assert.NoError(t, account.ValidateEmail(email), email)
	}

	invalid := []string{"", "u@test", "utest.com", "u @test.com", "@."}
	for _, email := range invalid {
		err := account.ValidateEmail(email)
		require.Error(t, err, email)
		assert.True(t, errors.Is(err, account.ErrInvalid))
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_EMAIL")
	}
}

func TestValidateGender(t *testing.T) {
	for _, g := range []string{"male", "female", "non-binary", "prefer-not-to-say", "Nam", "Nữ", "Khác", "Không muốn tiết lộ"} {
		assert.NoError(t, account.ValidateGender(g), g)
	}

	err := account.ValidateGender("Male")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_GENDER")
	errutil.AssertErrorContext(t, err, "gender", "Male")
}

func TestPatch_Empty(t *testing.T) {
	assert.True(t, account.Patch{}.Empty())
	name := "x"
	assert.False(t, account.Patch{Name: &name}.Empty())
}

func TestAccount_PublicOmitsHash(t *testing.T) {
	a := &account.Account{
		ID:           ulid.Make(),
		Email:        "u@test.com",
		PasswordHash: "$argon2id$secret",
		Name:         "U",
	}

	data, err := json.Marshal(a.Public())
	require.NoError(t, err)

	assert.NotContains(t, string(data), "argon2id")
	assert.NotContains(t, string(data), "password")
	assert.Contains(t, string(data), a.ID.String())
}
