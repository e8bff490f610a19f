// Package retry decides whether and when failed remote calls are retried.
// The same policy governs source fetches and document-store appends.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// Default policy values.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	DefaultJitter     = 0.25
)

// Config configures a Policy.
type Config struct {
	// MaxRetries caps the total number of attempts, the first try included.
	MaxRetries int `env:"RETRY_MAX_RETRIES" yaml:"max_retries"`
	// BaseDelay is the delay before the first retry, before jitter.
	BaseDelay time.Duration `env:"RETRY_BASE_DELAY" yaml:"base_delay"`
	// MaxDelay caps every computed delay.
	MaxDelay time.Duration `env:"RETRY_MAX_DELAY" yaml:"max_delay"`
	// Jitter is the upper bound of the random fraction added to each delay.
	Jitter float64 `env:"RETRY_JITTER" yaml:"jitter"`
}

// WithDefaults returns a copy of the config with defaults for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Decision is the outcome of ShouldRetry.
type Decision struct {
	Retry bool
	Delay time.Duration
	// Exhausted is set when the error was retryable but the attempt cap was reached.
	Exhausted bool
}

// Decider is implemented by retry policies.
type Decider interface {
	ShouldRetry(attempt int, err error) Decision
}

// Policy is exponential backoff with jitter, capped in both delay and attempts.
type Policy struct {
	cfg Config

	mu   sync.Mutex
	rand func() float64
}

// Option customizes a Policy.
type Option func(*Policy)

// WithRand replaces the jitter source. It must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(p *Policy) {
		p.rand = fn
	}
}

// NewPolicy builds a Policy from cfg with defaults applied.
func NewPolicy(cfg Config, opts ...Option) *Policy {
	p := &Policy{
		cfg:  cfg.WithDefaults(),
		rand: rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxRetries returns the configured attempt cap.
func (p *Policy) MaxRetries() int {
	return p.cfg.MaxRetries
}

// ShouldRetry decides whether the attempt that just failed with err is retried.
// attempt is zero-based: 0 is the first try. Only transient errors are retried.
func (p *Policy) ShouldRetry(attempt int, err error) Decision {
	if err == nil || !domain.IsTransient(err) {
		return Decision{}
	}
	if attempt+1 >= p.cfg.MaxRetries {
		return Decision{Exhausted: true}
	}

	return Decision{Retry: true, Delay: p.delay(attempt, domain.RetryAfterOf(err))}
}

func (p *Policy) delay(attempt int, retryAfter time.Duration) time.Duration {
	p.mu.Lock()
	jitter := p.cfg.Jitter * p.rand()
	p.mu.Unlock()

	backoff := float64(p.cfg.BaseDelay) * math.Pow(2, float64(attempt)) * (1 + jitter)
	d := time.Duration(math.Min(backoff, float64(p.cfg.MaxDelay)))

	if retryAfter > d {
		d = min(retryAfter, p.cfg.MaxDelay)
	}
	return d
}

// Notify is called before each backoff sleep.
type Notify func(attempt int, err error, delay time.Duration)

// Do calls fn until it succeeds or d declines to retry. Backoff sleeps stop
// early when ctx is done. When retries run out the returned error wraps both
// domain.ErrRetriesExhausted and the last error.
func Do(ctx context.Context, d Decider, fn func(ctx context.Context) error, notify Notify) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		decision := d.ShouldRetry(attempt, err)
		if decision.Exhausted {
			return fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, attempt+1, err)
		}
		if !decision.Retry {
			return err
		}

		if notify != nil {
			notify(attempt, err, decision.Delay)
		}

		if sleepErr := sleep(ctx, decision.Delay); sleepErr != nil {
			return fmt.Errorf("retry wait: %w (last error: %w)", sleepErr, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseRetryAfter reads a Retry-After header in either delta-seconds or HTTP-date form.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
