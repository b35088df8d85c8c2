// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package verification

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryCache is the process-local Cache. Every operation holds one mutex,
// so Issue is last-writer-wins and Verify's check-and-delete is atomic.
//
// A background goroutine drops entries that expired more than the retention
// period ago. Call Close to stop it.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	opts    options

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// nil if no registry was provided
	pendingGauge prometheus.Gauge
}

// NewMemoryCache creates a MemoryCache and starts its sweeper.
func NewMemoryCache(opts ...Option) *MemoryCache {
	return newMemoryCache(nil, opts)
}

// NewMemoryCacheWithRegistry also registers a gauge of pending codes.
func NewMemoryCacheWithRegistry(reg prometheus.Registerer, opts ...Option) *MemoryCache {
	return newMemoryCache(reg, opts)
}

func newMemoryCache(reg prometheus.Registerer, opts []Option) *MemoryCache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &MemoryCache{
		entries:  make(map[string]entry),
		opts:     o,
		stopChan: make(chan struct{}),
	}
	if reg != nil {
		c.pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "melodies_verification_pending_codes",
			Help: "Current number of verification codes held in memory",
		})
		reg.MustRegister(c.pendingGauge)
	}

	c.wg.Add(1)
	go c.sweepLoop(o.sweep)
	return c
}

// Issue generates and stores a new code for email.
func (c *MemoryCache) Issue(_ context.Context, email string) (string, error) {
	code, err := c.opts.generate()
	if err != nil {
		return "", oops.Code("VERIFICATION_CODE_FAILED").With("email", email).Wrap(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[email] = entry{code: code, expiresAt: c.opts.now().Add(c.opts.ttl)}
	c.updateGaugeLocked()
	return code, nil
}

// Verify checks candidate against the entry for email.
func (c *MemoryCache) Verify(_ context.Context, email, candidate string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[email]
	if !ok {
		return StatusNoPendingCode, nil
	}
	if !c.opts.now().Before(e.expiresAt) {
		delete(c.entries, email)
		c.updateGaugeLocked()
		return StatusExpired, nil
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(candidate)) != 1 {
		return StatusMismatch, nil
	}
	delete(c.entries, email)
	c.updateGaugeLocked()
	return StatusSuccess, nil
}

// Discard removes the entry for email, if any.
func (c *MemoryCache) Discard(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
	c.updateGaugeLocked()
	return nil
}

// Len returns the number of held entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops entries that expired more than the retention period ago.
// The background goroutine calls it periodically.
func (c *MemoryCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	threshold := c.opts.now().Add(-c.opts.retention)
	for email, e := range c.entries {
		if e.expiresAt.Before(threshold) {
			delete(c.entries, email)
		}
	}
	c.updateGaugeLocked()
}

func (c *MemoryCache) updateGaugeLocked() {
	if c.pendingGauge != nil {
		c.pendingGauge.Set(float64(len(c.entries)))
	}
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Close stops the sweeper and waits for it to exit. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
