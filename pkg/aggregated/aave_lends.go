package aggregated

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/contracts"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
	"github.com/ragetrade/vaultmetrics/pkg/series"
)

// aaveLendsZeroFill keeps the lends rollup sparse: days without stream events get no bucket.
const aaveLendsZeroFill = false

// AaveLendsEntry is the aUSDC held by both vaults around one stream event.
// Interest is the growth between the previous event and this one.
type AaveLendsEntry struct {
	Timestamp           int64   `json:"timestamp"`
	AUsdcJuniorBefore   float64 `json:"aUsdcJuniorBefore"`
	AUsdcJuniorAfter    float64 `json:"aUsdcJuniorAfter"`
	AUsdcSeniorBefore   float64 `json:"aUsdcSeniorBefore"`
	AUsdcSeniorAfter    float64 `json:"aUsdcSeniorAfter"`
	AUsdcInterestJunior float64 `json:"aUsdcInterestJunior"`
	AUsdcInterestSenior float64 `json:"aUsdcInterestSenior"`
}

type AaveLendsResult struct {
	Data      []sampler.Sample[AaveLendsEntry] `json:"data,omitempty"`
	DailyData []series.DailyBucket             `json:"dailyData"`
}

func aaveLendsKey(networkName string) cache.Key {
	return cache.NewKey("getAaveLends", networkName).WithTags(TagAggregated)
}

// AaveLends serves /data/aggregated/get-aave-lends.
func (c *Context) AaveLends(ctx context.Context, networkName string, excludeRawData bool) *cache.Envelope {
	return c.serve(ctx, aaveLendsKey(networkName), TTL, excludeRawData, c.aaveLendsFunc(networkName))
}

func (c *Context) fetchAaveLends(ctx context.Context, networkName string) (AaveLendsResult, *cache.Envelope, error) {
	return cache.Fetch[AaveLendsResult](ctx, c.Cache, withArgs(aaveLendsKey(networkName), false), TTL, c.aaveLendsFunc(networkName))
}

type aUsdcBalances struct {
	JuniorBefore, JuniorAfter float64
	SeniorBefore, SeniorAfter float64
}

func (c *Context) aaveLendsFunc(networkName string) cache.Func {
	return func(ctx context.Context) (any, error) {
		var fresh cache.Freshness
		totals, env, err := c.fetchTotalShares(ctx, networkName)
		if err != nil {
			return nil, err
		}
		fresh.Observe(env)

		ch, err := c.chain(networkName)
		if err != nil {
			return nil, err
		}
		if err := requireAddress("aUsdc", ch.net.Contracts.AUsdc); err != nil {
			return nil, err
		}
		sources, err := depositWithdrawRebalance(ch.net)
		if err != nil {
			return nil, err
		}
		aUsdc := contracts.NewERC20(ch.client, ch.net.Contracts.AUsdc.Address)
		junior := ch.net.Contracts.JuniorVault.Address
		senior := ch.net.Contracts.SeniorVault.Address

		balances, err := sampler.Collect(ctx, ch.client, c.samplerConfig(ch, totals.EndBlock, false), sources,
			func(ctx context.Context, _ int, p sampler.Provenance) (aUsdcBalances, error) {
				var b aUsdcBalances
				var err error
				if b.JuniorBefore, b.JuniorAfter, err = balanceAround(ctx, aUsdc, junior, p.BlockNumber); err != nil {
					return b, err
				}
				if b.SeniorBefore, b.SeniorAfter, err = balanceAround(ctx, aUsdc, senior, p.BlockNumber); err != nil {
					return b, err
				}
				return b, nil
			})
		if err != nil {
			return nil, err
		}

		balances, shares := series.AlignPrefix(balances, totals.Data)
		withTime, err := series.Combine(balances, shares, func(b sampler.Sample[aUsdcBalances], s sampler.Sample[TotalSharesEntry]) sampler.Sample[AaveLendsEntry] {
			return sampler.Sample[AaveLendsEntry]{Provenance: b.Provenance, Data: AaveLendsEntry{
				Timestamp:         s.Data.Timestamp,
				AUsdcJuniorBefore: b.Data.JuniorBefore,
				AUsdcJuniorAfter:  b.Data.JuniorAfter,
				AUsdcSeniorBefore: b.Data.SeniorBefore,
				AUsdcSeniorAfter:  b.Data.SeniorAfter,
			}}
		})
		if err != nil {
			return nil, err
		}

		data := series.Deltas(withTime, func(prev, cur sampler.Sample[AaveLendsEntry], ok bool) sampler.Sample[AaveLendsEntry] {
			if ok {
				cur.Data.AUsdcInterestJunior = cur.Data.AUsdcJuniorBefore - prev.Data.AUsdcJuniorAfter
				cur.Data.AUsdcInterestSenior = cur.Data.AUsdcSeniorBefore - prev.Data.AUsdcSeniorAfter
			}
			return cur
		})

		points := make([]series.Point, len(data))
		for i, d := range data {
			points[i] = series.Point{Timestamp: d.Data.Timestamp, Values: map[string]float64{
				"aUsdcInterestJunior": d.Data.AUsdcInterestJunior,
				"aUsdcInterestSenior": d.Data.AUsdcInterestSenior,
			}}
		}
		daily, err := series.Rollup(points, aaveLendsZeroFill)
		if err != nil {
			return nil, err
		}

		return fresh.Compose(AaveLendsResult{Data: data, DailyData: nonNil(daily)}), nil
	}
}

// balanceAround reads holder's balance at the end of block-1 and of block.
func balanceAround(ctx context.Context, token *contracts.ERC20, holder common.Address, block uint64) (before, after float64, err error) {
	if holder == (common.Address{}) {
		return 0, 0, nil
	}
	prev := block
	if prev > 0 {
		prev--
	}
	b, err := token.BalanceOf(ctx, holder, prev)
	if err != nil {
		return 0, 0, err
	}
	a, err := token.BalanceOf(ctx, holder, block)
	if err != nil {
		return 0, 0, err
	}
	return contracts.ToFloat(b, contracts.UsdcDecimals), contracts.ToFloat(a, contracts.UsdcDecimals), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
