// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/auth"
)

// DefaultIdentityHeader carries the authenticated account id from the proxy.
const DefaultIdentityHeader = "X-Account-ID"

// AccountService is the set of account flows the API exposes.
// *auth.Coordinator implements it.
type AccountService interface {
	Register(ctx context.Context, r auth.Registration) (*account.Account, error)
	Login(ctx context.Context, email, password string) (*account.Account, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	GetAccount(ctx context.Context, id ulid.ULID) (*account.Account, error)
	SendOTP(ctx context.Context, email, displayName string) error
	VerifyOTP(ctx context.Context, email, code string) (auth.Verified, error)
	ResendOTP(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, id ulid.ULID, p auth.ProfilePatch) (*account.Account, error)
	ResolveAccountID(ctx context.Context, rawID, email string) (ulid.ULID, error)
	DeleteAccount(ctx context.Context, id ulid.ULID, password string) error
	ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword string) error
}

var _ AccountService = (*auth.Coordinator)(nil)

// RateLimitConfig controls limiting on the verification-code routes.
type RateLimitConfig struct {
	Enabled bool
	Burst   int
	Rate    float64
}

// Config configures the API server.
type Config struct {
	// Addr is the listen address, e.g. ":5000".
	Addr string
	// IdentityHeader defaults to DefaultIdentityHeader.
	IdentityHeader string
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	// TrustForwardedFor keys rate limiting on X-Forwarded-For instead of the peer address.
	TrustForwardedFor bool
	RateLimit         RateLimitConfig
	// Version is reported by the root route.
	Version string
}

// Server is the REST API server.
type Server struct {
	cfg     Config
	svc     AccountService
	logger  *slog.Logger
	limiter *RateLimiter
	handler http.Handler
	now     func() time.Time

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool

	// nil if no registry was provided
	requests *prometheus.CounterVec
	registry prometheus.Registerer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry registers the request counter and limiter gauge on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithClock overrides the time source used by the health route and limiter.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a Server for svc.
func NewServer(cfg Config, svc AccountService, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Errorf("account service is required")
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = DefaultIdentityHeader
	}

	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "melodies_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"})
		s.registry.MustRegister(s.requests)
	}
	if cfg.RateLimit.Enabled {
		rlCfg := RateLimiterConfig{
			BurstCapacity: cfg.RateLimit.Burst,
			SustainedRate: cfg.RateLimit.Rate,
			Now:           s.now,
		}
		if s.registry != nil {
			s.limiter = NewRateLimiterWithRegistry(rlCfg, s.registry)
		} else {
			s.limiter = NewRateLimiter(rlCfg)
		}
	}

	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully wrapped API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/check-email", s.handleCheckEmail)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.Handle("POST /api/auth/send-otp", s.limited(s.handleSendOTP))
	mux.Handle("POST /api/auth/verify-otp", s.limited(s.handleVerifyOTP))
	mux.Handle("POST /api/auth/resend-otp", s.limited(s.handleResendOTP))
	mux.HandleFunc("PUT /api/auth/profile", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/auth/account", s.handleDeleteAccount)
	mux.HandleFunc("PUT /api/auth/change-password", s.handleChangePassword)

	mux.HandleFunc("/", s.handleNotFound)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", s.cfg.IdentityHeader},
	})

	return otelhttp.NewHandler(c.Handler(s.instrument(mux)), "melodies-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests and stops the rate limiter.
func (s *Server) Stop(ctx context.Context) error {
	defer s.closeLimiter()

	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Close releases background resources of a server that was never started.
func (s *Server) Close() {
	s.closeLimiter()
}

func (s *Server) closeLimiter() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
