// Package aggregated computes the vault metrics served under /data/aggregated.
//
// Every computation is memoized through the cache. Computations built on other
// computations fetch them through the same cache, so their results carry the
// oldest constituent timestamp.
package aggregated

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/contracts"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
	"github.com/ragetrade/vaultmetrics/pkg/network"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
	"go.uber.org/zap"
)

const (
	// TTL of every aggregated metric.
	TTL = 30 * time.Hour
	// BlockByTimestampTTL is the TTL of block lookups.
	BlockByTimestampTTL = time.Hour

	TagAggregated = "aggregated"
	TagUser       = "user"
)

// Context holds the collaborators shared by all computations.
type Context struct {
	Logger   *zap.Logger
	Cache    *cache.Cache
	Networks *network.Registry
	Pool     pond.Pool
}

// chain bundles the resolved network, its client and contract bindings.
type chain struct {
	net     *network.Network
	client  rpc.Client
	vault   *contracts.JuniorVault
	manager *contracts.BatchingManager
}

func (c *Context) chain(name string) (*chain, error) {
	n, err := c.Networks.Get(name)
	if err != nil {
		return nil, err
	}
	client, err := c.Networks.Client(name)
	if err != nil {
		return nil, err
	}
	return &chain{
		net:     n,
		client:  client,
		vault:   contracts.NewJuniorVault(client, n.Contracts.JuniorVault.Address),
		manager: contracts.NewBatchingManager(client, n.Contracts.BatchingManager.Address),
	}, nil
}

func (c *Context) samplerConfig(ch *chain, endBlock uint64, collapse bool) sampler.Config {
	return sampler.Config{
		EndBlock:                    endBlock,
		MaxBlockSpan:                ch.net.LogsBlockInterval,
		IgnoreMoreEventsInSameBlock: collapse,
		Pool:                        c.Pool,
		Logger:                      c.Logger,
	}
}

// serve answers one endpoint. The full result is cached under args+false; with
// excludeRawData the stripped result is cached under args+true and composed
// from the full one.
func (c *Context) serve(ctx context.Context, key cache.Key, ttl time.Duration, excludeRawData bool, full cache.Func) *cache.Envelope {
	fullKey := withArgs(key, false)
	if !excludeRawData {
		return c.Cache.GetOrSet(ctx, fullKey, ttl, full)
	}
	return c.Cache.GetOrSet(ctx, withArgs(key, true), ttl, func(ctx context.Context) (any, error) {
		res, env, err := cache.Fetch[map[string]json.RawMessage](ctx, c.Cache, fullKey, ttl, full)
		if err != nil {
			return nil, err
		}
		delete(res, "data")
		var fresh cache.Freshness
		fresh.Observe(env)
		return fresh.Compose(res), nil
	})
}

func withArgs(key cache.Key, args ...any) cache.Key {
	key.Args = append(append([]any(nil), key.Args...), args...)
	return key
}

func requireAddress(name string, c network.Contract) error {
	if c.Address == (network.Contract{}).Address {
		return fault.Fatal(name + " address is not configured")
	}
	return nil
}
