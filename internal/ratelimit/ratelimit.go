// Package ratelimit spaces outbound calls per target service.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Service keys used by the pipeline.
const (
	ServiceSource = "source"
	ServiceNotion = "notion"
)

// Default spacing per service.
const (
	DefaultSourceInterval = time.Second
	DefaultNotionInterval = 350 * time.Millisecond
)

// Limiter blocks callers until the service's minimum spacing has elapsed
// since the previous grant. Grants are FIFO under contention.
type Limiter interface {
	Acquire(ctx context.Context, serviceKey string) error
}

// Raiser is implemented by limiters whose spacing can be widened at runtime,
// for example to honor a robots.txt Crawl-delay. Spacing is never narrowed.
type Raiser interface {
	Raise(serviceKey string, interval time.Duration)
}

// Config configures per-service spacing.
type Config struct {
	// Backend is "local" (in-process) or "redis" (shared across processes).
	Backend   string                   `env:"RATELIMIT_BACKEND" yaml:"backend"`
	Intervals map[string]time.Duration `yaml:"intervals"`
	// DefaultInterval applies to keys without an explicit interval.
	DefaultInterval time.Duration `env:"RATELIMIT_DEFAULT_INTERVAL" yaml:"default_interval"`
}

// Backends.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// WithDefaults fills in the source and notion spacing when unset.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	intervals := make(map[string]time.Duration, len(c.Intervals)+2)
	intervals[ServiceSource] = DefaultSourceInterval
	intervals[ServiceNotion] = DefaultNotionInterval
	for k, v := range c.Intervals {
		intervals[k] = v
	}
	c.Intervals = intervals
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = DefaultSourceInterval
	}
	return c
}

// IntervalFor returns the spacing for key.
func (c Config) IntervalFor(key string) time.Duration {
	if d, ok := c.Intervals[key]; ok {
		return d
	}
	return c.DefaultInterval
}

// Local is an in-process Limiter backed by one token bucket per service with
// a burst of one. Reservations are taken in call order, which makes grants FIFO.
type Local struct {
	cfg Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	floors   map[string]time.Duration
}

// NewLocal creates an in-process limiter.
func NewLocal(cfg Config) *Local {
	return &Local{
		cfg:      cfg.WithDefaults(),
		limiters: make(map[string]*rate.Limiter),
		floors:   make(map[string]time.Duration),
	}
}

// Raise widens the spacing of serviceKey to at least interval.
func (l *Local) Raise(serviceKey string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if interval <= l.intervalLocked(serviceKey) {
		return
	}
	l.floors[serviceKey] = interval
	if lim, ok := l.limiters[serviceKey]; ok {
		lim.SetLimit(rate.Every(interval))
	}
}

func (l *Local) intervalLocked(key string) time.Duration {
	return max(l.cfg.IntervalFor(key), l.floors[key])
}

// Acquire waits for the next slot of serviceKey. A caller whose ctx ends while
// waiting gets ctx's error and its reservation is returned to the bucket.
func (l *Local) Acquire(ctx context.Context, serviceKey string) error {
	if err := l.limiter(serviceKey).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", serviceKey, err)
	}
	return nil
}

func (l *Local) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		interval := l.intervalLocked(key)
		limit := rate.Inf
		if interval > 0 {
			limit = rate.Every(interval)
		}
		lim = rate.NewLimiter(limit, 1)
		l.limiters[key] = lim
	}
	return lim
}
