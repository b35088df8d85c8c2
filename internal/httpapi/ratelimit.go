// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package httpapi

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rate limiting defaults for the verification-code routes.
const (
	// DefaultBurstCapacity is how many code requests a client may make back to back.
	DefaultBurstCapacity = 10

	// DefaultSustainedRate is the token refill rate, in requests per second.
	DefaultSustainedRate = 0.5

	// MinSustainedRate keeps the refill rate positive.
	MinSustainedRate = 0.01

	// DefaultCleanupInterval is how often idle client buckets are dropped.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultClientMaxAge is how long a bucket may sit idle before cleanup removes it.
	DefaultClientMaxAge = time.Hour
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// BurstCapacity defaults to DefaultBurstCapacity if zero or negative.
	BurstCapacity int

	// SustainedRate defaults to DefaultSustainedRate if zero or negative.
	SustainedRate float64

	CleanupInterval time.Duration
	ClientMaxAge    time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type clientBucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-client token bucket. It is safe for concurrent use.
//
// A background goroutine drops idle buckets. Call Close to stop it.
type RateLimiter struct {
	mu            sync.Mutex
	clients       map[string]*clientBucket
	burstCapacity int
	sustainedRate float64
	clientMaxAge  time.Duration
	now           func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// nil if no registry was provided
	clientGauge prometheus.Gauge
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, nil)
}

// NewRateLimiterWithRegistry also registers a tracked-clients gauge on reg.
func NewRateLimiterWithRegistry(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	return newRateLimiter(cfg, reg)
}

func newRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	burst := cfg.BurstCapacity
	if burst <= 0 {
		burst = DefaultBurstCapacity
	}
	rate := cfg.SustainedRate
	if rate <= 0 {
		rate = DefaultSustainedRate
	}
	rate = math.Max(rate, MinSustainedRate)

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxAge := cfg.ClientMaxAge
	if maxAge <= 0 {
		maxAge = DefaultClientMaxAge
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rl := &RateLimiter{
		clients:       make(map[string]*clientBucket),
		burstCapacity: burst,
		sustainedRate: rate,
		clientMaxAge:  maxAge,
		now:           now,
		stopChan:      make(chan struct{}),
	}
	if reg != nil {
		rl.clientGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "melodies_ratelimiter_clients",
			Help: "Current number of clients tracked by the verification-code rate limiter",
		})
		reg.MustRegister(rl.clientGauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(interval)
	return rl
}

// Allow consumes a token for client. When none is available it returns false
// and the wait until the next token.
func (rl *RateLimiter) Allow(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	bucket, ok := rl.clients[client]
	if !ok {
		bucket = &clientBucket{tokens: float64(rl.burstCapacity), lastCheck: now}
		rl.clients[client] = bucket
		rl.updateGaugeLocked()
	}

	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens = math.Min(bucket.tokens+elapsed*rl.sustainedRate, float64(rl.burstCapacity))
	bucket.lastCheck = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, 0
	}

	wait := (1 - bucket.tokens) / rl.sustainedRate
	return false, time.Duration(wait * float64(time.Second))
}

// ClientCount returns the number of tracked clients.
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Cleanup drops clients idle for longer than maxAge.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := rl.now().Add(-maxAge)
	for client, bucket := range rl.clients {
		if bucket.lastCheck.Before(threshold) {
			delete(rl.clients, client)
		}
	}
	rl.updateGaugeLocked()
}

func (rl *RateLimiter) updateGaugeLocked() {
	if rl.clientGauge != nil {
		rl.clientGauge.Set(float64(len(rl.clients)))
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Cleanup(rl.clientMaxAge)
		}
	}
}

// Close stops the cleanup goroutine and waits for it. Safe to call twice.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stopChan) })
	rl.wg.Wait()
}
