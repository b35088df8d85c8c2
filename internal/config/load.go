// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/melodies/melodies/internal/account"
	"github.com/melodies/melodies/internal/notify"
	"github.com/melodies/melodies/internal/verification"
)

// EnvPrefix namespaces environment overrides. Nested keys use a double
// underscore: MELODIES_HTTP__ADDR sets http.addr.
const EnvPrefix = "MELODIES_"

// legacyEnv maps the unprefixed variables of earlier deployments to keys.
var legacyEnv = map[string]string{
	"EMAIL_USER":     "mail.username",
	"EMAIL_PASSWORD": "mail.password",
	"FRONTEND_URL":   "mail.frontend_url",
	"DATABASE_URL":   "database.url",
	"REDIS_URL":      "verification.redis_url",
	"PORT":           "http.addr",
}

// flagKeys maps command-line flag names to keys.
var flagKeys = map[string]string{
	"addr":            "http.addr",
	"metrics-addr":    "metrics_addr",
	"database-url":    "database.url",
	"storage":         "database.backend",
	"auto-migrate":    "database.auto_migrate",
	"code-store":      "verification.backend",
	"mail-driver":     "mail.driver",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"frontend-url":    "mail.frontend_url",
	"identity-header": "http.identity_header",
}

// Defaults returns the built-in configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":                 ":5000",
		"http.identity_header":      "X-Account-ID",
		"http.allowed_origins":      []string{},
		"http.trust_forwarded_for":  false,
		"http.shutdown_timeout":     15 * time.Second,
		"http.rate_limit.enabled":   true,
		"http.rate_limit.burst":     10,
		"http.rate_limit.rate":      0.5,
		"metrics_addr":              "127.0.0.1:9100",
		"database.backend":          BackendPostgres,
		"database.url":              "",
		"database.max_conns":        int32(10),
		"database.connect_attempts": uint64(5),
		"database.auto_migrate":     false,
		"verification.backend":      BackendMemory,
		"verification.ttl":          verification.DefaultTTL,
		"verification.redis_url":    "",
		"mail.driver":               MailDriverSMTP,
		"mail.host":                 notify.DefaultSMTPHost,
		"mail.port":                 notify.DefaultSMTPPort,
		"mail.username":             "",
		"mail.password":             "",
		"mail.timeout":              notify.DefaultSMTPTimeout,
		"mail.from_address":         "",
		"mail.app_name":             notify.DefaultAppName,
		"mail.frontend_url":         "http://localhost:3000",
		"hasher.time":               uint32(account.DefaultHashTime),
		"hasher.memory_kib":         uint32(account.DefaultHashMemory),
		"hasher.threads":            uint8(account.DefaultHashThreads),
		"log.level":                 "info",
		"log.format":                "json",
	}
}

// LoadOptions selects the optional layers.
type LoadOptions struct {
	// File is a YAML file validated against the config schema. Optional.
	File string
	// Flags are applied last; only flags the user set override earlier layers.
	Flags *pflag.FlagSet
	// SkipValidation is for maintenance commands that only read part of
	// the configuration, such as the database URL.
	SkipValidation bool
}

// Load builds the configuration from every layer and validates it.
func Load(opts LoadOptions) (*Config, error) {
	k, err := load(opts)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if cfg.Mail.FromAddress == "" {
		cfg.Mail.FromAddress = cfg.Mail.Username
	}
	if opts.SkipValidation {
		return &cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func load(opts LoadOptions) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", opts.File).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_SCHEMA_INVALID").With("path", opts.File).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", opts.File).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnvKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "legacy env").Wrap(err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedEnvKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}
	return k, nil
}

func legacyEnvKey(name, value string) (string, any) {
	key, ok := legacyEnv[name]
	if !ok || value == "" {
		return "", nil
	}
	if name == "PORT" {
		return key, ":" + strings.TrimPrefix(value, ":")
	}
	return key, value
}

// prefixedEnvKey turns MELODIES_HTTP__RATE_LIMIT__BURST into http.rate_limit.burst.
// Comma separated values become lists for allowed_origins.
func prefixedEnvKey(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "http.allowed_origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return key, origins
	}
	return key, value
}

func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// RegisterFlags defines the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	str := func(key string) string {
		s, _ := d[key].(string)
		return s
	}
	fs.String("addr", str("http.addr"), "API listen address")
	fs.String("metrics-addr", str("metrics_addr"), "metrics and health listen address (empty disables)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("storage", str("database.backend"), "account storage backend (postgres or memory)")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
	fs.String("code-store", str("verification.backend"), "verification code store (memory or redis)")
	fs.String("mail-driver", str("mail.driver"), "mail driver (smtp or log)")
	fs.String("log-level", str("log.level"), "log level (debug, info, warn, error)")
	fs.String("log-format", str("log.format"), "log format (json or text)")
	fs.String("frontend-url", str("mail.frontend_url"), "frontend base URL used in emails")
	fs.String("identity-header", str("http.identity_header"), "header carrying the authenticated account id")
}
