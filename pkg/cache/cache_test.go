package cache

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T, clock clockwork.Clock) (*Cache, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	c, err := New(store, Options{Clock: clock, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, store
}

func counting(n *atomic.Int32, result any, err error) Func {
	return func(context.Context) (any, error) {
		n.Add(1)
		return result, err
	}
}

func TestGetOrSet_SingleFlight(t *testing.T) {
	c, _ := newTestCache(t, clockwork.NewRealClock())
	key := NewKey("slow", "arbmain")

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return map[string]int{"answer": 42}, nil
	}

	const n = 32
	results := make([]*Envelope, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetOrSet(context.Background(), key, time.Minute, compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, env := range results {
		require.False(t, env.Failed())
		assert.JSONEq(t, `{"answer":42}`, string(env.Result))
		assert.Equal(t, results[0].CacheTimestamp, env.CacheTimestamp)
	}
}

func TestGetOrSet_TTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	c, _ := newTestCache(t, clock)
	key := NewKey("ttl")

	var calls atomic.Int32
	compute := counting(&calls, "v", nil)

	first := c.GetOrSet(context.Background(), key, 30*time.Second, compute)
	assert.Equal(t, int64(1_700_000_000), first.CacheTimestamp)
	assert.Equal(t, int64(30), first.CacheSeconds)

	clock.Advance(29 * time.Second)
	second := c.GetOrSet(context.Background(), key, 30*time.Second, compute)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.CacheTimestamp, second.CacheTimestamp)

	clock.Advance(2 * time.Second)
	third := c.GetOrSet(context.Background(), key, 30*time.Second, compute)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(1_700_000_031), third.CacheTimestamp)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestGetOrSet_RecoverableErrorIsClamped(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_000, 0))
	c, _ := newTestCache(t, clock)
	key := NewKey("missing", "0xabc")

	var calls atomic.Int32
	compute := counting(&calls, nil, fault.New(http.StatusNotFound, "no such pool"))

	env := c.GetOrSet(context.Background(), key, time.Hour, compute)
	require.True(t, env.Failed())
	assert.Equal(t, "no such pool", env.Error)
	assert.Equal(t, http.StatusNotFound, env.Status)
	assert.Equal(t, int64(15), env.CacheSeconds)
	assert.Equal(t, int64(1_000), env.CacheTimestamp)

	clock.Advance(10 * time.Second)
	again := c.GetOrSet(context.Background(), key, time.Hour, compute)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, env.CacheTimestamp, again.CacheTimestamp)

	clock.Advance(6 * time.Second)
	c.GetOrSet(context.Background(), key, time.Hour, compute)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrSet_ServerErrorsAreNeverCached(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "no status", err: errors.New("rpc exploded")},
		{name: "internal", err: fault.New(http.StatusInternalServerError, "boom"), status: 500},
		{name: "fatal config", err: fault.Fatal("Start block is not defined"), status: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestCache(t, clockwork.NewFakeClock())
			var calls atomic.Int32
			compute := counting(&calls, nil, tt.err)

			env := c.GetOrSet(context.Background(), NewKey("fail"), time.Hour, compute)
			require.True(t, env.Failed())
			assert.Equal(t, tt.status, env.Status)
			assert.Zero(t, env.CacheSeconds)
			assert.Zero(t, env.CacheTimestamp)
			assert.Zero(t, store.Len())

			c.GetOrSet(context.Background(), NewKey("fail"), time.Hour, compute)
			assert.Equal(t, int32(2), calls.Load())
			assert.Equal(t, uint64(2), c.Stats().Uncached)
		})
	}
}

func TestGetOrSet_PanicIsServerError(t *testing.T) {
	c, store := newTestCache(t, clockwork.NewFakeClock())

	env := c.GetOrSet(context.Background(), NewKey("panics"), time.Hour, func(context.Context) (any, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	})

	require.True(t, env.Failed())
	assert.True(t, strings.HasPrefix(env.Error, "internal error"))
	assert.Zero(t, env.CacheSeconds)
	assert.Zero(t, store.Len())
	assert.Equal(t, uint64(1), c.Stats().Panics)
}

func TestGetOrSet_FreshnessPropagates(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(100, 0))
	c, _ := newTestCache(t, clock)
	ctx := context.Background()

	subA := NewKey("a")
	subB := NewKey("b")
	c.GetOrSet(ctx, subA, time.Hour, counting(new(atomic.Int32), 1, nil))
	clock.Advance(100 * time.Second)
	c.GetOrSet(ctx, subB, time.Hour, counting(new(atomic.Int32), 2, nil))
	clock.Advance(50 * time.Second)

	composite := c.GetOrSet(ctx, NewKey("sum"), time.Hour, func(ctx context.Context) (any, error) {
		var fresh Freshness
		a, envA, err := Fetch[int](ctx, c, subA, time.Hour, nil)
		if err != nil {
			return nil, err
		}
		fresh.Observe(envA)
		b, envB, err := Fetch[int](ctx, c, subB, time.Hour, nil)
		if err != nil {
			return nil, err
		}
		fresh.Observe(envB)
		return fresh.Compose(a + b), nil
	})

	require.False(t, composite.Failed())
	assert.JSONEq(t, "3", string(composite.Result))
	assert.Equal(t, int64(100), composite.CacheTimestamp)

	// The composite expires with its oldest constituent.
	clock.Advance(time.Hour - 150*time.Second)
	var calls atomic.Int32
	c.GetOrSet(ctx, NewKey("sum"), time.Hour, counting(&calls, 3, nil))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_PropagatesFailureStatus(t *testing.T) {
	c, _ := newTestCache(t, clockwork.NewFakeClock())

	_, env, err := Fetch[int](context.Background(), c, NewKey("bad"), time.Hour,
		counting(new(atomic.Int32), nil, fault.BadRequest("userAddress is required")))
	require.Error(t, err)
	require.NotNil(t, env)
	status, ok := fault.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetOrSet_WaiterCancellationKeepsComputation(t *testing.T) {
	c, _ := newTestCache(t, clockwork.NewRealClock())
	key := NewKey("shared")

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		close(started)
		<-release
		return "done", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Envelope)
	go func() { done <- c.GetOrSet(ctx, key, time.Minute, compute) }()

	<-started
	cancel()
	cancelled := <-done
	require.True(t, cancelled.Failed())
	assert.Zero(t, cancelled.CacheSeconds)

	close(release)
	env := c.GetOrSet(context.Background(), key, time.Minute, compute)
	require.False(t, env.Failed())
	assert.JSONEq(t, `"done"`, string(env.Result))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFlush(t *testing.T) {
	c, store := newTestCache(t, clockwork.NewFakeClock())
	var calls atomic.Int32
	compute := counting(&calls, true, nil)

	c.GetOrSet(context.Background(), NewKey("x"), time.Hour, compute)
	require.Equal(t, 1, store.Len())

	require.NoError(t, c.Flush(context.Background()))
	assert.Zero(t, store.Len())
	assert.Zero(t, c.Stats().Misses)

	c.GetOrSet(context.Background(), NewKey("x"), time.Hour, compute)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFreshness(t *testing.T) {
	t.Run("minimum", func(t *testing.T) {
		var f Freshness
		f.Observe(&Envelope{CacheTimestamp: 200, CacheSeconds: 10})
		f.Observe(&Envelope{CacheTimestamp: 100, CacheSeconds: 10})
		assert.Equal(t, int64(100), f.Timestamp())
	})
	t.Run("absent constituent", func(t *testing.T) {
		var f Freshness
		f.Observe(&Envelope{CacheTimestamp: 100, CacheSeconds: 10})
		f.Observe(&Envelope{})
		f.Observe(&Envelope{CacheTimestamp: 200, CacheSeconds: 10})
		assert.Zero(t, f.Timestamp())
		assert.Zero(t, f.Compose(1).CacheTimestamp)
	})
	t.Run("nothing observed", func(t *testing.T) {
		var f Freshness
		assert.Zero(t, f.Timestamp())
	})
}
