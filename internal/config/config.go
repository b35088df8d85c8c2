// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

// Package config loads the service configuration. Sources are layered:
// built-in defaults, an optional YAML file, environment variables, then
// command-line flags.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/logging"
)

// Backends and drivers.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"

	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

const redactedValue = "********"

// Config is the complete service configuration.
type Config struct {
	HTTP         HTTPConfig         `koanf:"http" json:"http,omitempty" yaml:"http"`
	MetricsAddr  string             `koanf:"metrics_addr" json:"metrics_addr,omitempty" yaml:"metrics_addr" jsonschema:"description=Listen address for /metrics and health probes; empty disables"`
	Database     DatabaseConfig     `koanf:"database" json:"database,omitempty" yaml:"database"`
	Verification VerificationConfig `koanf:"verification" json:"verification,omitempty" yaml:"verification"`
	Mail         MailConfig         `koanf:"mail" json:"mail,omitempty" yaml:"mail"`
	Hasher       HasherConfig       `koanf:"hasher" json:"hasher,omitempty" yaml:"hasher"`
	Log          LogConfig          `koanf:"log" json:"log,omitempty" yaml:"log"`
}

// HTTPConfig configures the REST API listener.
type HTTPConfig struct {
	Addr              string          `koanf:"addr" json:"addr,omitempty" yaml:"addr"`
	IdentityHeader    string          `koanf:"identity_header" json:"identity_header,omitempty" yaml:"identity_header" jsonschema:"description=Header carrying the authenticated account id"`
	AllowedOrigins    []string        `koanf:"allowed_origins" json:"allowed_origins,omitempty" yaml:"allowed_origins"`
	TrustForwardedFor bool            `koanf:"trust_forwarded_for" json:"trust_forwarded_for,omitempty" yaml:"trust_forwarded_for"`
	ShutdownTimeout   time.Duration   `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout" jsonschema:"type=string"`
	RateLimit         RateLimitConfig `koanf:"rate_limit" json:"rate_limit,omitempty" yaml:"rate_limit"`
}

// RateLimitConfig limits the verification-code routes per client.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled" json:"enabled,omitempty" yaml:"enabled"`
	Burst   int     `koanf:"burst" json:"burst,omitempty" yaml:"burst" jsonschema:"minimum=1"`
	Rate    float64 `koanf:"rate" json:"rate,omitempty" yaml:"rate" jsonschema:"description=Tokens per second"`
}

// DatabaseConfig selects and configures account storage.
type DatabaseConfig struct {
	Backend         string `koanf:"backend" json:"backend,omitempty" yaml:"backend" jsonschema:"enum=postgres,enum=memory"`
	URL             string `koanf:"url" json:"url,omitempty" yaml:"url"`
	MaxConns        int32  `koanf:"max_conns" json:"max_conns,omitempty" yaml:"max_conns"`
	ConnectAttempts uint64 `koanf:"connect_attempts" json:"connect_attempts,omitempty" yaml:"connect_attempts"`
	AutoMigrate     bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty" yaml:"auto_migrate"`
}

// VerificationConfig selects where pending codes live.
type VerificationConfig struct {
	Backend  string        `koanf:"backend" json:"backend,omitempty" yaml:"backend" jsonschema:"enum=memory,enum=redis"`
	TTL      time.Duration `koanf:"ttl" json:"ttl,omitempty" yaml:"ttl" jsonschema:"type=string"`
	RedisURL string        `koanf:"redis_url" json:"redis_url,omitempty" yaml:"redis_url"`
}

// MailConfig configures outgoing email.
type MailConfig struct {
	Driver      string        `koanf:"driver" json:"driver,omitempty" yaml:"driver" jsonschema:"enum=smtp,enum=log"`
	Host        string        `koanf:"host" json:"host,omitempty" yaml:"host"`
	Port        int           `koanf:"port" json:"port,omitempty" yaml:"port"`
	Username    string        `koanf:"username" json:"username,omitempty" yaml:"username"`
	Password    string        `koanf:"password" json:"password,omitempty" yaml:"password"`
	Timeout     time.Duration `koanf:"timeout" json:"timeout,omitempty" yaml:"timeout" jsonschema:"type=string"`
	FromAddress string        `koanf:"from_address" json:"from_address,omitempty" yaml:"from_address" jsonschema:"description=Defaults to username"`
	AppName     string        `koanf:"app_name" json:"app_name,omitempty" yaml:"app_name"`
	FrontendURL string        `koanf:"frontend_url" json:"frontend_url,omitempty" yaml:"frontend_url"`
}

// HasherConfig tunes the argon2id password work factor.
type HasherConfig struct {
	Time      uint32 `koanf:"time" json:"time,omitempty" yaml:"time" jsonschema:"minimum=1,description=Argon2id iterations"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" yaml:"memory_kib" jsonschema:"minimum=8,description=Argon2id memory in KiB"`
	Threads   uint8  `koanf:"threads" json:"threads,omitempty" yaml:"threads" jsonschema:"minimum=1,maximum=255"`
}

// HashParams converts the config into hasher parameters.
func (h HasherConfig) HashParams() account.HashParams {
	return account.HashParams{Time: h.Time, MemoryKiB: h.MemoryKiB, Threads: h.Threads}
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" jsonschema:"enum=json,enum=text"`
}

// Validate reports every invalid or missing value at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(p string) { problems = append(problems, p) }

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		add("http.addr is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		add("http.shutdown_timeout must be positive")
	}
	if c.HTTP.RateLimit.Enabled && (c.HTTP.RateLimit.Burst < 1 || c.HTTP.RateLimit.Rate <= 0) {
		add("http.rate_limit needs burst >= 1 and rate > 0 when enabled")
	}

	switch c.Database.Backend {
	case BackendPostgres:
		if c.Database.URL == "" {
			add("database.url is required for the postgres backend")
		}
	case BackendMemory:
	default:
		add("database.backend must be postgres or memory")
	}

	switch c.Verification.Backend {
	case BackendRedis:
		if c.Verification.RedisURL == "" {
			add("verification.redis_url is required for the redis backend")
		}
	case BackendMemory:
	default:
		add("verification.backend must be memory or redis")
	}
	if c.Verification.TTL <= 0 {
		add("verification.ttl must be positive")
	}

	switch c.Mail.Driver {
	case MailDriverSMTP:
		if c.Mail.Username == "" || c.Mail.Password == "" {
			add("mail.username and mail.password are required for the smtp driver")
		}
		if c.Mail.Host == "" || c.Mail.Port <= 0 {
			add("mail.host and mail.port are required for the smtp driver")
		}
	case MailDriverLog:
	default:
		add("mail.driver must be smtp or log")
	}
	if c.Mail.FromAddress == "" {
		add("mail.from_address is required")
	}

	if c.Hasher.Time < 1 || c.Hasher.Threads < 1 {
		add("hasher.time and hasher.threads must be at least 1")
	}
	// argon2 needs 8 KiB per lane
	if c.Hasher.MemoryKiB < 8*uint32(c.Hasher.Threads) {
		add("hasher.memory_kib must be at least 8 * hasher.threads")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level must be debug, info, warn or error")
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		add("log.format must be json or text")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	out.HTTP.AllowedOrigins = append([]string(nil), c.HTTP.AllowedOrigins...)
	if out.Mail.Password != "" {
		out.Mail.Password = redactedValue
	}
	out.Database.URL = redactURL(c.Database.URL)
	out.Verification.RedisURL = redactURL(c.Verification.RedisURL)
	return out
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redactedValue
	}
	return u.Redacted()
}
