package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter keys in Redis.
const keyPrefix = "ratelimit:"

// reserveScript atomically books the next grant for a key.
// KEYS[1] = limiter key, ARGV[1] = caller time in ms, ARGV[2] = interval in ms.
// Returns how many ms the caller must wait before its grant.
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local nextFree = tonumber(redis.call('GET', KEYS[1]) or '0')
local grant = now
if nextFree > now then
  grant = nextFree
end
local ttl = grant - now + interval
if ttl < 1 then
  ttl = 1
end
redis.call('SET', KEYS[1], grant + interval, 'PX', ttl)
return grant - now
`)

// Redis is a Limiter shared by every process pointing at the same Redis.
// Each Acquire reserves a slot with one script call, so Redis is the single
// serialization point and grants follow script execution order.
// Hosts are expected to have synchronized clocks.
type Redis struct {
	client redis.Scripter
	cfg    Config
	now    func() time.Time

	mu     sync.RWMutex
	floors map[string]time.Duration
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(client redis.Scripter, cfg Config) *Redis {
	return &Redis{
		client: client,
		cfg:    cfg.WithDefaults(),
		now:    time.Now,
		floors: make(map[string]time.Duration),
	}
}

// Raise widens this process's spacing of serviceKey to at least interval.
// Other processes keep their own spacing until they raise it too.
func (r *Redis) Raise(serviceKey string, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if interval > r.floors[serviceKey] {
		r.floors[serviceKey] = interval
	}
}

func (r *Redis) interval(key string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return max(r.cfg.IntervalFor(key), r.floors[key])
}

// Acquire reserves the next slot for serviceKey and sleeps until it arrives.
// A reservation is not released when ctx ends during the sleep.
func (r *Redis) Acquire(ctx context.Context, serviceKey string) error {
	interval := r.interval(serviceKey)
	if interval <= 0 {
		return nil
	}

	waitMS, err := reserveScript.Run(ctx, r.client,
		[]string{keyPrefix + serviceKey},
		r.now().UnixMilli(), interval.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("rate limit %s: reserve: %w", serviceKey, err)
	}
	if waitMS <= 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(waitMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit %s: %w", serviceKey, ctx.Err())
	case <-timer.C:
		return nil
	}
}
