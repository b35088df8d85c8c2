// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/melodies/melodies/internal/config"
	"github.com/melodies/melodies/internal/notify"
	"github.com/melodies/melodies/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConnectDatabase opens the account database pool.
	// Default: store.Connect
	ConnectDatabase func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// RedisClientFactory creates the client backing the shared code store.
	// Default: redis.ParseURL + redis.NewClient
	RedisClientFactory func(rawURL string) (redis.UniversalClient, error)

	// SenderFactory creates the mail transport.
	// Default: SMTP or log sender per mail.driver
	SenderFactory func(cfg config.MailConfig, logger *slog.Logger) (notify.Sender, error)

	// LogOutput receives the service logs.
	// Default: os.Stderr
	LogOutput io.Writer

	// Ready is called once both listeners are bound. metricsAddr is empty
	// when the observability server is disabled.
	Ready func(apiAddr, metricsAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.ConnectDatabase == nil {
		out.ConnectDatabase = store.Connect
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newStoreMigrator
	}
	if out.RedisClientFactory == nil {
		out.RedisClientFactory = newRedisClient
	}
	if out.SenderFactory == nil {
		out.SenderFactory = newSender
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	if out.Ready == nil {
		out.Ready = func(string, string) {}
	}
	return &out
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

func newStoreMigrator(databaseURL string) (Migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		//nolint:wrapcheck // store errors carry their own codes
		return nil, err
	}
	return m, nil
}

func newRedisClient(rawURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	return redis.NewClient(opts), nil
}

func newSender(cfg config.MailConfig, logger *slog.Logger) (notify.Sender, error) {
	switch cfg.Driver {
	case config.MailDriverLog:
		return notify.NewLogSender(logger), nil
	case config.MailDriverSMTP:
		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			//nolint:wrapcheck // notify errors carry their own codes
			return nil, err
		}
		return sender, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// StatusDeps contains injectable dependencies for the status command.
type StatusDeps struct {
	// HTTPClient queries the running service.
	// Default: a client with a 2 second timeout
	HTTPClient *http.Client
}

func (d *StatusDeps) withDefaults() *StatusDeps {
	out := StatusDeps{}
	if d != nil {
		out = *d
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: 2 * time.Second}
	}
	return &out
}
