// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/account/memory"
	"github.com/melodies/melodies/internal/account/postgres"
	"github.com/melodies/melodies/internal/auth"
	"github.com/melodies/melodies/internal/config"
	"github.com/melodies/melodies/internal/httpapi"
	"github.com/melodies/melodies/internal/logging"
	"github.com/melodies/melodies/internal/notify"
	"github.com/melodies/melodies/internal/observability"
	"github.com/melodies/melodies/internal/store"
	"github.com/melodies/melodies/internal/verification"
	"github.com/melodies/melodies/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the account API",
		Long: `Start the REST API together with the metrics and health server.
Storage, the verification code store and the mail driver are chosen by
configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, nil)
		},
	}
}

// app holds the running components and the cleanup for each of them.
type app struct {
	api     *httpapi.Server
	obs     *observability.Server // nil when metrics_addr is empty
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// runServe runs until ctx is cancelled, SIGINT or SIGTERM arrives, or a
// server fails. If deps is nil, default implementations are used.
func runServe(ctx context.Context, cfg *config.Config, deps *ServeDeps) error {
	deps = deps.withDefaults()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, deps.LogOutput)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "starting melodies",
		"version", version,
		"storage", cfg.Database.Backend,
		"code_store", cfg.Verification.Backend,
		"mail_driver", cfg.Mail.Driver)

	a, err := buildApp(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsAddr := ""
	if a.obs != nil {
		obsErrCh, startErr := a.obs.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metricsAddr = a.obs.Addr()
	}

	apiErrCh, err := a.api.Start()
	if err != nil {
		shutdown(cfg, a, logger)
		//nolint:wrapcheck // carries HTTP_LISTEN_FAILED
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	logger.InfoContext(ctx, "melodies ready", "addr", a.api.Addr(), "metrics_addr", metricsAddr)
	deps.Ready(a.api.Addr(), metricsAddr)

	<-ctx.Done()
	logger.Info("shutting down")
	shutdown(cfg, a, logger)
	logger.Info("shutdown complete")
	return nil
}

// shutdown stops the API first so in-flight requests can still reach
// their dependencies, then the observability server.
func shutdown(cfg *config.Config, a *app, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := a.api.Stop(ctx); err != nil {
		errutil.LogError(logger, "error stopping api server", err)
	}
	if a.obs != nil {
		if err := a.obs.Stop(ctx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}
}

// buildApp wires storage, the code store, mail and the servers. On error
// everything opened so far is closed.
func buildApp(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	obsOpts := []observability.Option{
		observability.WithLogger(logger),
		observability.WithBuildInfo(version, commit),
	}

	repo, dbCheck, err := a.openRepository(ctx, cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	if dbCheck != nil {
		obsOpts = append(obsOpts, observability.WithReadinessCheck("database", dbCheck))
	}

	var sharedCodes *verification.RedisCache
	if cfg.Verification.Backend == config.BackendRedis {
		client, clientErr := deps.RedisClientFactory(cfg.Verification.RedisURL)
		if clientErr != nil {
			return nil, clientErr
		}
		sharedCodes, err = verification.NewRedisCache(client, verification.WithTTL(cfg.Verification.TTL))
		if err != nil {
			_ = client.Close()
			//nolint:wrapcheck // constructor error is already descriptive
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = sharedCodes.Close() })
		obsOpts = append(obsOpts, observability.WithReadinessCheck("verification_cache", sharedCodes.Ping))
	}

	// components register their collectors only when metrics are served
	var reg prometheus.Registerer
	if cfg.MetricsAddr != "" {
		a.obs = observability.NewServer(cfg.MetricsAddr, obsOpts...)
		reg = a.obs.Registry()
	}

	var codes verification.Cache = sharedCodes
	if sharedCodes == nil {
		local := verification.NewMemoryCacheWithRegistry(reg, verification.WithTTL(cfg.Verification.TTL))
		a.closers = append(a.closers, func() { _ = local.Close() })
		codes = local
	}

	sender, err := deps.SenderFactory(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}
	mailer, err := notify.NewMailer(notify.MailerConfig{
		AppName:     cfg.Mail.AppName,
		FromAddress: cfg.Mail.FromAddress,
		FrontendURL: cfg.Mail.FrontendURL,
		CodeTTL:     cfg.Verification.TTL,
	}, sender, notify.WithLogger(logger), notify.WithRegistry(reg))
	if err != nil {
		//nolint:wrapcheck // notify errors carry their own codes
		return nil, err
	}

	accounts, err := newAccountStore(repo, cfg.Hasher)
	if err != nil {
		//nolint:wrapcheck // constructor error is already descriptive
		return nil, err
	}
	coord, err := auth.NewCoordinator(accounts, codes, mailer, auth.WithLogger(logger), auth.WithRegistry(reg))
	if err != nil {
		//nolint:wrapcheck // constructor error is already descriptive
		return nil, err
	}

	apiOpts := []httpapi.Option{httpapi.WithLogger(logger)}
	if reg != nil {
		apiOpts = append(apiOpts, httpapi.WithRegistry(reg))
	}
	a.api, err = httpapi.NewServer(httpapi.Config{
		Addr:              cfg.HTTP.Addr,
		IdentityHeader:    cfg.HTTP.IdentityHeader,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		TrustForwardedFor: cfg.HTTP.TrustForwardedFor,
		RateLimit: httpapi.RateLimitConfig{
			Enabled: cfg.HTTP.RateLimit.Enabled,
			Burst:   cfg.HTTP.RateLimit.Burst,
			Rate:    cfg.HTTP.RateLimit.Rate,
		},
		Version: version,
	}, coord, apiOpts...)
	if err != nil {
		//nolint:wrapcheck // constructor error is already descriptive
		return nil, err
	}
	a.closers = append(a.closers, a.api.Close)
	return a, nil
}

// openRepository returns the account repository and, for PostgreSQL, its
// readiness check.
func (a *app) openRepository(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (account.Repository, observability.Check, error) {
	if cfg.Database.Backend == config.BackendMemory {
		logger.WarnContext(ctx, "using in-memory account storage; accounts are lost on restart")
		return memory.NewRepository(), nil, nil
	}

	pool, err := deps.ConnectDatabase(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, pool.Close)

	if cfg.Database.AutoMigrate {
		if err := applyMigrations(deps.MigratorFactory, cfg.Database.URL, logger); err != nil {
			return nil, nil, err
		}
	}
	return postgres.NewAccountRepository(pool), store.ReadinessCheck(pool), nil
}

// newAccountStore hashes passwords with the configured argon2id work factor.
func newAccountStore(repo account.Repository, hc config.HasherConfig) (*account.Store, error) {
	//nolint:wrapcheck // constructor error is already descriptive
	return account.NewStore(repo, account.NewArgon2idHasher(hc.HashParams()))
}

// applyMigrations brings the schema up to date before the API accepts traffic.
func applyMigrations(factory func(string) (Migrator, error), databaseURL string, logger *slog.Logger) error {
	m, err := factory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	status, err := m.Status()
	if err != nil {
		//nolint:wrapcheck // store errors carry their own codes
		return err
	}
	logger.Info("database schema up to date", "version", status.Version, "name", status.Name)
	return nil
}

// monitorServerErrors cancels the context when a server reports an error.
// It exits when an error is received, the channel is closed, or the
// context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
