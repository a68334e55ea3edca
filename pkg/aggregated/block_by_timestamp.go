package aggregated

import (
	"context"
	"fmt"

	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/fault"
	"github.com/ragetrade/vaultmetrics/pkg/rpc"
)

type BlockByTimestampResult struct {
	BlockNumber uint64 `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
}

// BlockByTimestamp serves /data/get-block-by-timestamp: the last block mined at or before timestamp.
func (c *Context) BlockByTimestamp(ctx context.Context, networkName string, timestamp int64) *cache.Envelope {
	key := cache.NewKey("getBlockByTimestamp", networkName, timestamp)
	return c.Cache.GetOrSet(ctx, key, BlockByTimestampTTL, func(ctx context.Context) (any, error) {
		client, err := c.Networks.Client(networkName)
		if err != nil {
			return nil, err
		}
		return findBlock(ctx, client, timestamp)
	})
}

func findBlock(ctx context.Context, client rpc.Client, timestamp int64) (BlockByTimestampResult, error) {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return BlockByTimestampResult{}, fmt.Errorf("current block: %w", err)
	}
	headTs, err := client.BlockTimestamp(ctx, head)
	if err != nil {
		return BlockByTimestampResult{}, err
	}
	if timestamp >= headTs {
		if timestamp > headTs {
			return BlockByTimestampResult{}, fault.BadRequest("timestamp %d is after the latest block (%d)", timestamp, headTs)
		}
		return BlockByTimestampResult{BlockNumber: head, Timestamp: headTs}, nil
	}
	genesisTs, err := client.BlockTimestamp(ctx, 0)
	if err != nil {
		return BlockByTimestampResult{}, err
	}
	if timestamp < genesisTs {
		return BlockByTimestampResult{}, fault.BadRequest("timestamp %d is before the first block (%d)", timestamp, genesisTs)
	}

	// Invariant: ts(lo) <= timestamp < ts(hi).
	lo, hi := uint64(0), head
	loTs := genesisTs
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		ts, err := client.BlockTimestamp(ctx, mid)
		if err != nil {
			return BlockByTimestampResult{}, err
		}
		if ts <= timestamp {
			lo, loTs = mid, ts
		} else {
			hi = mid
		}
	}
	return BlockByTimestampResult{BlockNumber: lo, Timestamp: loTs}, nil
}
