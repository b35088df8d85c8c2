// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/melodies/melodies/internal/store"
)

// migratorFactory is replaced in tests.
var migratorFactory = newStoreMigrator

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the account database schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL migrations.`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m Migrator) error {
				cmd.Println("Running migrations...")
				var err error
				if steps > 0 {
					err = m.Steps(steps)
				} else {
					err = m.Up()
				}
				if err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
				}
				return printVersion(cmd, m)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "apply at most this many migrations (0 = all)")
	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var (
		steps int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  `Roll back the latest migration, the given number of steps, or with --all every migration.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 && !all {
				return oops.Code("INVALID_ARGUMENT").Errorf("--steps must be at least 1")
			}
			return withMigrator(cmd, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-steps)
				}
				if err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
				}
				return printVersion(cmd, m)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					//nolint:wrapcheck // store errors carry their own codes
					return err
				}
				if jsonOutput {
					data, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						return oops.Wrap(err)
					}
					cmd.Println(string(data))
					return nil
				}
				cmd.Print(formatMigrationStatus(status))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	return cmd
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Mark VERSION as applied and clear the dirty flag. Use after fixing a
migration that failed halfway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return oops.Code("INVALID_ARGUMENT").With("version", args[0]).Errorf("version must be a non-negative integer")
			}
			return withMigrator(cmd, func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
				}
				return printVersion(cmd, m)
			})
		},
	}
}

func withMigrator(cmd *cobra.Command, fn func(Migrator) error) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	m, err := migratorFactory(url)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	status, err := m.Status()
	if err != nil {
		//nolint:wrapcheck // store errors carry their own codes
		return err
	}
	if status.Version == 0 {
		cmd.Println("Schema is empty")
		return nil
	}
	cmd.Printf("Schema at version %d (%s)\n", status.Version, status.Name)
	return nil
}

func formatMigrationStatus(status store.MigrationStatus) string {
	out := fmt.Sprintf("Version: %d", status.Version)
	if status.Name != "" {
		out += " (" + status.Name + ")"
	}
	if status.Dirty {
		out += " [dirty]"
	}
	out += "\n"
	out += fmt.Sprintf("Applied: %d\n", len(status.Applied))
	out += fmt.Sprintf("Pending: %d\n", len(status.Pending))
	for _, v := range status.Pending {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		out += "  " + name + "\n"
	}
	return out
}
