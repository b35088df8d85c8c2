// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package verification

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultKeyPrefix namespaces verification entries in Redis.
const DefaultKeyPrefix = "melodies:otp:"

// verifyScript returns 1 success, 2 no pending code, 3 expired, 4 mismatch.
// ARGV[1] is the candidate, ARGV[2] the caller's clock in unix milliseconds.
var verifyScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return 2
end
local sep = string.find(v, '|', 1, true)
if not sep then
  redis.call('DEL', KEYS[1])
  return 2
end
local code = string.sub(v, 1, sep - 1)
local expires = tonumber(string.sub(v, sep + 1))
if tonumber(ARGV[2]) >= expires then
  redis.call('DEL', KEYS[1])
  return 3
end
if code ~= ARGV[1] then
  return 4
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisCache is a Cache shared between API instances. Values are stored as
// "code|expiresAtUnixMilli" with a Redis TTL of TTL plus the expired
// retention, so Verify can still tell an expired code from a missing one.
// The script makes the check and the delete atomic on the server.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	opts   options
}

// NewRedisCache creates a RedisCache on client.
func NewRedisCache(client redis.UniversalClient, opts ...Option) (*RedisCache, error) {
	if client == nil {
		return nil, oops.Errorf("redis client is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisCache{client: client, prefix: DefaultKeyPrefix, opts: o}, nil
}

func (c *RedisCache) key(email string) string {
	return c.prefix + email
}

// Issue generates a code and overwrites any entry for email.
func (c *RedisCache) Issue(ctx context.Context, email string) (string, error) {
	code, err := c.opts.generate()
	if err != nil {
		return "", oops.Code("VERIFICATION_CODE_FAILED").With("email", email).Wrap(err)
	}
	if strings.Contains(code, "|") {
		return "", oops.Code("VERIFICATION_CODE_FAILED").With("email", email).Errorf("code contains separator")
	}

	expiresAt := c.opts.now().Add(c.opts.ttl)
	value := code + "|" + strconv.FormatInt(expiresAt.UnixMilli(), 10)
	if err := c.client.Set(ctx, c.key(email), value, c.opts.ttl+c.opts.retention).Err(); err != nil {
		return "", oops.Code("VERIFICATION_STORE_FAILED").
			With("operation", "set code").
			With("email", email).
			Wrap(err)
	}
	return code, nil
}

// Verify runs the check-and-delete script for email.
func (c *RedisCache) Verify(ctx context.Context, email, candidate string) (Status, error) {
	now := strconv.FormatInt(c.opts.now().UnixMilli(), 10)
	result, err := verifyScript.Run(ctx, c.client, []string{c.key(email)}, candidate, now).Int()
	if err != nil {
		return 0, oops.Code("VERIFICATION_STORE_FAILED").
			With("operation", "verify code").
			With("email", email).
			Wrap(err)
	}

	switch result {
	case 1:
		return StatusSuccess, nil
	case 2:
		return StatusNoPendingCode, nil
	case 3:
		return StatusExpired, nil
	case 4:
		return StatusMismatch, nil
	default:
		return 0, oops.Code("VERIFICATION_STORE_FAILED").
			With("email", email).
			Errorf("unexpected script result %d", result)
	}
}

// Discard deletes the entry for email.
func (c *RedisCache) Discard(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, c.key(email)).Err(); err != nil {
		return oops.Code("VERIFICATION_STORE_FAILED").
			With("operation", "discard code").
			With("email", email).
			Wrap(err)
	}
	return nil
}

// Ping checks the connection, for readiness probes.
func (c *RedisCache) Ping(ctx context.Context) error {
	//nolint:wrapcheck // readiness only cares about nil
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	//nolint:wrapcheck // shutdown path
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
