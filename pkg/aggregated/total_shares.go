package aggregated

import (
	"context"
	"fmt"

	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/contracts"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
)

// TotalSharesEntry is the vault-wide share state at one stream event.
type TotalSharesEntry struct {
	Timestamp         int64   `json:"timestamp"`
	TotalShares       float64 `json:"totalShares"`
	CurrentRound      uint64  `json:"currentRound"`
	RoundUsdcBalance  float64 `json:"roundUsdcBalance"`
	RoundSharesMinted float64 `json:"roundSharesMinted"`
}

// TotalSharesResult covers [StartBlock, EndBlock]; dependent computations pin
// their own sampling to EndBlock so their series line up with Data.
type TotalSharesResult struct {
	Data       []sampler.Sample[TotalSharesEntry] `json:"data,omitempty"`
	StartBlock uint64                             `json:"startBlock"`
	EndBlock   uint64                             `json:"endBlock"`
}

func totalSharesKey(networkName string) cache.Key {
	return cache.NewKey("getTotalShares", networkName).WithTags(TagAggregated)
}

// TotalShares serves /data/aggregated/get-total-shares.
func (c *Context) TotalShares(ctx context.Context, networkName string, excludeRawData bool) *cache.Envelope {
	return c.serve(ctx, totalSharesKey(networkName), TTL, excludeRawData, c.totalSharesFunc(networkName))
}

func (c *Context) fetchTotalShares(ctx context.Context, networkName string) (TotalSharesResult, *cache.Envelope, error) {
	return cache.Fetch[TotalSharesResult](ctx, c.Cache, withArgs(totalSharesKey(networkName), false), TTL, c.totalSharesFunc(networkName))
}

func (c *Context) totalSharesFunc(networkName string) cache.Func {
	return func(ctx context.Context) (any, error) {
		ch, err := c.chain(networkName)
		if err != nil {
			return nil, err
		}
		sources, err := depositWithdrawRebalance(ch.net)
		if err != nil {
			return nil, err
		}
		head, err := ch.client.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("current block: %w", err)
		}

		data, err := sampler.Collect(ctx, ch.client, c.samplerConfig(ch, head, false), sources,
			func(ctx context.Context, _ int, p sampler.Provenance) (TotalSharesEntry, error) {
				block := p.BlockNumber
				ts, err := ch.client.BlockTimestamp(ctx, block)
				if err != nil {
					return TotalSharesEntry{}, err
				}
				supply, err := ch.vault.TotalSupply(ctx, block)
				if err != nil {
					return TotalSharesEntry{}, err
				}
				round, err := ch.manager.CurrentRound(ctx, block)
				if err != nil {
					return TotalSharesEntry{}, err
				}
				pooled, err := ch.manager.RoundUsdcBalance(ctx, block)
				if err != nil {
					return TotalSharesEntry{}, err
				}
				deposits, err := ch.manager.RoundDeposits(ctx, round, block)
				if err != nil {
					return TotalSharesEntry{}, err
				}
				return TotalSharesEntry{
					Timestamp:         ts,
					TotalShares:       contracts.ToFloat(supply, contracts.EtherDecimals),
					CurrentRound:      round.Uint64(),
					RoundUsdcBalance:  contracts.ToFloat(pooled, contracts.UsdcDecimals),
					RoundSharesMinted: contracts.ToFloat(deposits.TotalShares, contracts.EtherDecimals),
				}, nil
			})
		if err != nil {
			return nil, err
		}

		start := ch.net.Contracts.JuniorVault.DeployBlock
		if b := ch.net.Contracts.BatchingManager.DeployBlock; b != 0 && b < start {
			start = b
		}
		return TotalSharesResult{Data: data, StartBlock: start, EndBlock: head}, nil
	}
}
