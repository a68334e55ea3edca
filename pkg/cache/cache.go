// Package cache memoizes computation results in a shared store.
//
// Every call is identified by a Key. Successful results are kept for the
// requested TTL, client-class failures (status below 500) for at most
// MaxErrorSeconds, and server-class failures are never stored. Concurrent
// misses on one key share a single computation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MaxErrorSeconds bounds how long a client-class failure is served from cache.
const MaxErrorSeconds = 15

// Func computes a cacheable result. Returning a Composed value propagates the
// freshness of the cached results it was built from.
type Func func(ctx context.Context) (any, error)

// Options configure a Cache.
type Options struct {
	Clock            clockwork.Clock
	Logger           *zap.Logger
	CompressMinBytes int
}

// Cache is the memoizing layer in front of a Store.
type Cache struct {
	store  Store
	codec  *codec
	clock  clockwork.Clock
	logger *zap.Logger
	flight singleflight.Group
	stats  *Stats
}

func New(store Store, opts Options) (*Cache, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cdc, err := newCodec(opts.CompressMinBytes)
	if err != nil {
		return nil, err
	}
	return &Cache{
		store:  store,
		codec:  cdc,
		clock:  opts.Clock,
		logger: opts.Logger,
		stats:  newStats(),
	}, nil
}

// GetOrSet serves key from the store while its envelope is valid, otherwise runs
// compute once for all concurrent callers and stores the outcome per the TTL policy.
// A caller whose ctx ends stops waiting, but the shared computation keeps running.
func (c *Cache) GetOrSet(ctx context.Context, key Key, ttl time.Duration, compute Func) *Envelope {
	k := key.String()
	c.stats.sawKey(k)

	if env, ok := c.lookup(ctx, k); ok {
		c.stats.hits.Add(1)
		return env
	}

	ch := c.flight.DoChan(k, func() (any, error) {
		return c.fill(context.WithoutCancel(ctx), k, ttl, compute), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.stats.shared.Add(1)
		}
		return res.Val.(*Envelope)
	case <-ctx.Done():
		return &Envelope{Error: ctx.Err().Error()}
	}
}

// fill runs inside the single flight of key k.
func (c *Cache) fill(ctx context.Context, k string, ttl time.Duration, compute Func) *Envelope {
	// A flight that finished just before this one started may have stored a value.
	if env, ok := c.lookup(ctx, k); ok {
		c.stats.hits.Add(1)
		return env
	}
	c.stats.misses.Add(1)

	start := c.clock.Now()
	c.logger.Debug("Cache miss, computing", zap.String("key", k))

	result, err := c.run(ctx, k, compute)
	now := c.clock.Now().Unix()
	ttlSeconds := int64(ttl / time.Second)

	var env *Envelope
	if err != nil {
		env = c.failure(k, err, now, ttlSeconds)
	} else {
		env, err = c.success(result, now, ttlSeconds)
		if err != nil {
			env = c.failure(k, err, now, ttlSeconds)
		}
	}

	if env.CacheSeconds > 0 {
		c.save(ctx, k, env, now)
	}

	c.logger.Debug("Computation finished",
		zap.String("key", k),
		zap.Bool("failed", env.Failed()),
		zap.Int64("cache_seconds", env.CacheSeconds),
		zap.Duration("took", c.clock.Since(start)),
	)
	return env
}

// run invokes compute, turning a panic into a server-class error.
func (c *Cache) run(ctx context.Context, k string, compute Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.panics.Add(1)
			c.logger.Error("Computation panicked",
				zap.String("key", k),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return compute(ctx)
}

func (c *Cache) success(result any, now, ttlSeconds int64) (*Envelope, error) {
	ts := now
	if composed, ok := result.(Composed); ok {
		if composed.CacheTimestamp > 0 && composed.CacheTimestamp < now {
			ts = composed.CacheTimestamp
		}
		result = composed.Result
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Envelope{Result: raw, CacheTimestamp: ts, CacheSeconds: ttlSeconds}, nil
}

func (c *Cache) failure(k string, err error, now, ttlSeconds int64) *Envelope {
	status, ok := fault.StatusOf(err)
	env := &Envelope{Error: err.Error(), Status: status}
	if ok && fault.IsRecoverable(err) {
		env.CacheTimestamp = now
		env.CacheSeconds = min(ttlSeconds, MaxErrorSeconds)
		return env
	}
	c.stats.uncached.Add(1)
	c.logger.Warn("Computation failed, not caching",
		zap.String("key", k),
		zap.Int("status", status),
		zap.Error(err),
	)
	return env
}

func (c *Cache) lookup(ctx context.Context, k string) (*Envelope, bool) {
	value, ok, err := c.store.Get(ctx, k)
	if err != nil {
		c.stats.storeErrs.Add(1)
		c.logger.Warn("Cache store read failed", zap.String("key", k), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	env, err := c.codec.decode(value)
	if err != nil {
		c.stats.storeErrs.Add(1)
		c.logger.Warn("Cache value unreadable", zap.String("key", k), zap.Error(err))
		return nil, false
	}
	if !env.ValidAt(c.clock.Now().Unix()) {
		return nil, false
	}
	return env, true
}

// save stores env for the rest of its validity window.
func (c *Cache) save(ctx context.Context, k string, env *Envelope, now int64) {
	remaining := env.Remaining(now)
	if remaining <= 0 {
		return
	}
	value, err := c.codec.encode(env)
	if err != nil {
		c.stats.storeErrs.Add(1)
		c.logger.Warn("Cache value not encodable", zap.String("key", k), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, k, value, time.Duration(remaining)*time.Second); err != nil {
		c.stats.storeErrs.Add(1)
		c.logger.Warn("Cache store write failed", zap.String("key", k), zap.Error(err))
		return
	}
	c.stats.stored.Add(1)
}

// Fetch runs GetOrSet and decodes the result into T. A failed envelope is
// returned as an error with its status preserved. The envelope is returned in
// both cases so composite computations can observe its freshness.
func Fetch[T any](ctx context.Context, c *Cache, key Key, ttl time.Duration, compute Func) (T, *Envelope, error) {
	var out T
	env := c.GetOrSet(ctx, key, ttl, compute)
	if env.Failed() {
		return out, env, env.Err()
	}
	if err := json.Unmarshal(env.Result, &out); err != nil {
		return out, env, fmt.Errorf("decode %s: %w", key.Name, err)
	}
	return out, env, nil
}

// Flush removes every entry from the store and resets the statistics.
func (c *Cache) Flush(ctx context.Context) error {
	if err := c.store.Flush(ctx); err != nil {
		return fmt.Errorf("flush cache store: %w", err)
	}
	c.stats.reset()
	c.logger.Info("Cache flushed")
	return nil
}

// Stats returns the current counters.
func (c *Cache) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Health reports whether the store is reachable.
func (c *Cache) Health(ctx context.Context) error {
	return c.store.Health(ctx)
}

// Close releases the codec and the store.
func (c *Cache) Close() error {
	c.codec.close()
	return c.store.Close()
}
