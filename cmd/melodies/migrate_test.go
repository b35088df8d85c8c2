// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodies/melodies/internal/store"
	"github.com/melodies/melodies/pkg/errutil"
)

type fakeMigrator struct {
	calls  []string
	steps  []int
	forced int
	upErr  error
	status store.MigrationStatus
	gotURL string
}

func (m *fakeMigrator) factory(err error) func(string) (Migrator, error) {
	return func(url string) (Migrator, error) {
		m.gotURL = url
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func (m *fakeMigrator) Up() error {
	m.calls = append(m.calls, "up")
	return m.upErr
}

func (m *fakeMigrator) Down() error {
	m.calls = append(m.calls, "down")
	return nil
}

func (m *fakeMigrator) Steps(n int) error {
	m.calls = append(m.calls, "steps")
	m.steps = append(m.steps, n)
	return nil
}

func (m *fakeMigrator) Force(version int) error {
	m.calls = append(m.calls, "force")
	m.forced = version
	return nil
}

func (m *fakeMigrator) Status() (store.MigrationStatus, error) {
	m.calls = append(m.calls, "status")
	return m.status, nil
}

func (m *fakeMigrator) Close() error {
	m.calls = append(m.calls, "close")
	return nil
}

// useFakeMigrator swaps the package factory for the duration of the test.
func useFakeMigrator(t *testing.T, m *fakeMigrator) {
	t.Helper()
	prev := migratorFactory
	migratorFactory = m.factory(nil)
	t.Cleanup(func() { migratorFactory = prev })
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	isolateEnv(t)
	useFakeMigrator(t, &fakeMigrator{})

	_, err := execute(t, "migrate", "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestMigrate_Up(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{status: store.MigrationStatus{Version: 2, Name: "000002_account_gender_check"}}
	useFakeMigrator(t, m)

	out, err := execute(t, "migrate", "up", "--database-url", "postgres://db/melodies")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/melodies", m.gotURL)
	assert.Equal(t, []string{"up", "status", "close"}, m.calls)
	assert.Contains(t, out, "Schema at version 2 (000002_account_gender_check)")
}

func TestMigrate_UpUsesLegacyEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/melodies")
	m := &fakeMigrator{}
	useFakeMigrator(t, m)

	out, err := execute(t, "migrate", "up", "--steps", "1")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/melodies", m.gotURL)
	assert.Equal(t, []int{1}, m.steps)
	assert.Contains(t, out, "Schema is empty")
}

func TestMigrate_UpFailure(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{upErr: errors.New("dirty database version 2")}
	useFakeMigrator(t, m)

	_, err := execute(t, "migrate", "up", "--database-url", "postgres://db/melodies")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	assert.Equal(t, []string{"up", "close"}, m.calls)
}

func TestMigrate_Down(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantCalls []string
		wantSteps []int
	}{
		{"latest", nil, []string{"steps", "status", "close"}, []int{-1}},
		{"steps", []string{"--steps", "2"}, []string{"steps", "status", "close"}, []int{-2}},
		{"all", []string{"--all"}, []string{"down", "status", "close"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			m := &fakeMigrator{}
			useFakeMigrator(t, m)

			args := append([]string{"migrate", "down", "--database-url", "postgres://db/melodies"}, tt.args...)
			_, err := execute(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, m.calls)
			assert.Equal(t, tt.wantSteps, m.steps)
		})
	}
}

func TestMigrate_DownRejectsZeroSteps(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{}
	useFakeMigrator(t, m)

	_, err := execute(t, "migrate", "down", "--steps", "0", "--database-url", "postgres://db/melodies")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_ARGUMENT")
	assert.Empty(t, m.calls)
}

func TestMigrate_Status(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{status: store.MigrationStatus{
		Version: 1,
		Name:    "000001_accounts",
		Applied: []uint{1},
		Pending: []uint{2},
	}}
	useFakeMigrator(t, m)

	out, err := execute(t, "migrate", "status", "--database-url", "postgres://db/melodies")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1 (000001_accounts)")
	assert.Contains(t, out, "Applied: 1")
	assert.Contains(t, out, "Pending: 1")
	assert.Contains(t, out, "000002_account_gender_check")
}

func TestMigrate_StatusJSON(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{status: store.MigrationStatus{Version: 2, Dirty: true, Applied: []uint{1, 2}, Pending: []uint{}}}
	useFakeMigrator(t, m)

	out, err := execute(t, "migrate", "status", "--json", "--database-url", "postgres://db/melodies")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": 2`)
	assert.Contains(t, out, `"dirty": true`)
}

func TestMigrate_Force(t *testing.T) {
	isolateEnv(t)
	m := &fakeMigrator{}
	useFakeMigrator(t, m)

	_, err := execute(t, "migrate", "force", "1", "--database-url", "postgres://db/melodies")
	require.NoError(t, err)
	assert.Equal(t, 1, m.forced)

	for _, bad := range []string{"abc", "-1", "1.5"} {
		_, err := execute(t, "migrate", "force", bad, "--database-url", "postgres://db/melodies")
		require.Error(t, err, bad)
	}
}

func TestFormatMigrationStatus_Dirty(t *testing.T) {
	out := formatMigrationStatus(store.MigrationStatus{Version: 2, Name: "000002_account_gender_check", Dirty: true})
	assert.Contains(t, out, "[dirty]")
}
