package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonesrussell/north-cloud/problemsync/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 40 * time.Millisecond

func testConfig() ratelimit.Config {
	return ratelimit.Config{
		Intervals: map[string]time.Duration{
			ratelimit.ServiceSource: testInterval,
			"fast":                  0,
		},
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := ratelimit.Config{Intervals: map[string]time.Duration{ratelimit.ServiceNotion: time.Second}}.WithDefaults()

	assert.Equal(t, ratelimit.BackendLocal, cfg.Backend)
	assert.Equal(t, ratelimit.DefaultSourceInterval, cfg.IntervalFor(ratelimit.ServiceSource))
	assert.Equal(t, time.Second, cfg.IntervalFor(ratelimit.ServiceNotion))
	assert.Equal(t, ratelimit.DefaultSourceInterval, cfg.IntervalFor("unknown"))
}

func TestLocal_EnforcesMinimumSpacing(t *testing.T) {
	t.Parallel()

	lim := ratelimit.NewLocal(testConfig())
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, lim.Acquire(ctx, ratelimit.ServiceSource))
	}

	assert.GreaterOrEqual(t, time.Since(start), 2*testInterval-5*time.Millisecond)
}

func TestLocal_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	lim := ratelimit.NewLocal(testConfig())
	ctx := context.Background()

	require.NoError(t, lim.Acquire(ctx, ratelimit.ServiceSource))

	start := time.Now()
	for range 5 {
		require.NoError(t, lim.Acquire(ctx, "fast"))
	}
	assert.Less(t, time.Since(start), testInterval)
}

func TestLocal_GrantsInArrivalOrder(t *testing.T) {
	t.Parallel()

	lim := ratelimit.NewLocal(testConfig())
	ctx := context.Background()
	require.NoError(t, lim.Acquire(ctx, ratelimit.ServiceSource))

	const callers = 4

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range callers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := lim.Acquire(ctx, ratelimit.ServiceSource); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}(i)
		// Stagger arrivals well inside one interval so arrival order is known.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestLocal_CancelledWaiterReturnsContextError(t *testing.T) {
	t.Parallel()

	lim := ratelimit.NewLocal(ratelimit.Config{
		Intervals: map[string]time.Duration{ratelimit.ServiceSource: time.Hour},
	})
	require.NoError(t, lim.Acquire(context.Background(), ratelimit.ServiceSource))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.Error(t, lim.Acquire(ctx, ratelimit.ServiceSource))
}

func TestLocal_RaiseWidensSpacing(t *testing.T) {
	t.Parallel()

	const raised = 3 * testInterval

	lim := ratelimit.NewLocal(testConfig())
	ctx := context.Background()

	require.NoError(t, lim.Acquire(ctx, ratelimit.ServiceSource))
	lim.Raise(ratelimit.ServiceSource, raised)
	lim.Raise(ratelimit.ServiceSource, time.Millisecond)

	start := time.Now()
	for range 2 {
		require.NoError(t, lim.Acquire(ctx, ratelimit.ServiceSource))
	}

	assert.GreaterOrEqual(t, time.Since(start), 2*raised-10*time.Millisecond)
}

func TestLocal_RaiseBeforeFirstAcquire(t *testing.T) {
	t.Parallel()

	lim := ratelimit.NewLocal(testConfig())
	ctx := context.Background()
	lim.Raise("fast", testInterval)

	start := time.Now()
	for range 2 {
		require.NoError(t, lim.Acquire(ctx, "fast"))
	}

	assert.GreaterOrEqual(t, time.Since(start), testInterval-5*time.Millisecond)
}

func TestRedis_RaiseWidensSpacing(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lim := ratelimit.NewRedis(client, testConfig())
	lim.Raise("fast", testInterval)
	lim.Raise("fast", time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, lim.Acquire(ctx, "fast"))
	}

	assert.GreaterOrEqual(t, time.Since(start), 2*testInterval-5*time.Millisecond)
	assert.True(t, mr.Exists("ratelimit:fast"))
}

func TestRedis_SerializesAcrossInstances(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first := ratelimit.NewRedis(client, testConfig())
	second := ratelimit.NewRedis(client, testConfig())
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for _, lim := range []*ratelimit.Redis{first, second, first, second} {
		wg.Add(1)
		go func(l *ratelimit.Redis) {
			defer wg.Done()
			if err := l.Acquire(ctx, ratelimit.ServiceSource); err != nil {
				t.Errorf("acquire: %v", err)
			}
		}(lim)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 3*testInterval-5*time.Millisecond)
	assert.True(t, mr.Exists("ratelimit:"+ratelimit.ServiceSource))
}

func TestRedis_ZeroIntervalSkipsRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lim := ratelimit.NewRedis(client, testConfig())
	require.NoError(t, lim.Acquire(context.Background(), "fast"))
	assert.False(t, mr.Exists("ratelimit:fast"))
}

func TestRedis_ReserveFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	lim := ratelimit.NewRedis(client, testConfig())
	require.Error(t, lim.Acquire(context.Background(), ratelimit.ServiceSource))
}
