// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/melodies/melodies/internal/config"
	"github.com/melodies/melodies/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

const serviceName = "melodies"

// NewRootCmd creates the root command for the Melodies CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "melodies",
		Short: "Melodies - account and email verification service",
		Long: `Melodies runs the account API of the Melodies music app: registration,
login, email verification codes and profile management.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/melodies/config.yaml if present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig builds the configuration for cmd from the config file,
// the environment and the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return loadConfigWith(cmd, false)
}

func loadConfigWith(cmd *cobra.Command, skipValidation bool) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	//nolint:wrapcheck // config errors carry their own codes
	return config.Load(config.LoadOptions{File: path, Flags: cmd.Flags(), SkipValidation: skipValidation})
}

// configPath returns --config, or the per-user config file when the flag
// is not set.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	//nolint:wrapcheck // xdg errors carry their own codes
	return xdg.ConfigFile()
}

// databaseURL resolves only the database URL, for commands that do not
// need mail or code store settings.
func databaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := databaseConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Database.URL, nil
}

// databaseConfig loads configuration for commands that only talk to the
// database, requiring a database url.
func databaseConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfigWith(cmd, true)
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database url is required (--database-url, DATABASE_URL or database.url)")
	}
	return cfg, nil
}
