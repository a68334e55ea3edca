package aggregated

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/contracts"
	"github.com/ragetrade/vaultmetrics/pkg/network"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
	"github.com/ragetrade/vaultmetrics/pkg/series"
)

// marketMovementZeroFill makes the PnL rollup contiguous: quiet days appear as zero buckets.
const marketMovementZeroFill = true

// TokenPosition is the vault's implied exposure to one GLP basket token.
type TokenPosition struct {
	UsdgAmount   float64 `json:"usdgAmount"`
	TokenWeight  float64 `json:"tokenWeight"`
	Price        float64 `json:"price"`
	CurrentToken float64 `json:"currentToken"`
	Pnl          float64 `json:"pnl"`
}

// MarketMovementEntry values the vault's GLP basket at one sampled block.
type MarketMovementEntry struct {
	Timestamp       int64                    `json:"timestamp"`
	VaultGlp        float64                  `json:"vaultGlp"`
	GlpPrice        float64                  `json:"glpPrice"`
	TotalUsdgAmount float64                  `json:"totalUsdcAmount"`
	Tokens          map[string]TokenPosition `json:"tokens"`
	Pnl             float64                  `json:"pnl"`
}

// MarketMovementResult holds per-token PnL totals keyed "<token>Pnl" plus "pnl".
type MarketMovementResult struct {
	Data      []sampler.Sample[MarketMovementEntry] `json:"data,omitempty"`
	DailyData []series.DailyBucket                  `json:"dailyData"`
	Totals    map[string]float64                    `json:"totals"`
}

func marketMovementKey(networkName string) cache.Key {
	return cache.NewKey("getMarketMovement", networkName).WithTags(TagAggregated)
}

// MarketMovement serves /data/aggregated/get-market-movement.
func (c *Context) MarketMovement(ctx context.Context, networkName string, excludeRawData bool) *cache.Envelope {
	return c.serve(ctx, marketMovementKey(networkName), TTL, excludeRawData, c.marketMovementFunc(networkName))
}

type trackedToken struct {
	name  string
	addr  common.Address
	price *contracts.PriceFeed
}

func (c *Context) marketMovementFunc(networkName string) cache.Func {
	return func(ctx context.Context) (any, error) {
		ch, err := c.chain(networkName)
		if err != nil {
			return nil, err
		}
		for name, ct := range map[string]network.Contract{"fsGlp": ch.net.Contracts.FsGlp, "juniorVault": ch.net.Contracts.JuniorVault} {
			if err := requireAddress(name, ct); err != nil {
				return nil, err
			}
		}
		sources, err := usdgAmountChanges(ch.net)
		if err != nil {
			return nil, err
		}

		gmx := contracts.NewGmxVault(ch.client, ch.net.Contracts.GmxVault.Address)
		fsGlp := contracts.NewERC20(ch.client, ch.net.Contracts.FsGlp.Address)
		tracked := make([]trackedToken, len(ch.net.MarketMovement.Tokens))
		for i, t := range ch.net.MarketMovement.Tokens {
			tracked[i] = trackedToken{name: t.Name, addr: t.Address, price: contracts.NewPriceFeed(ch.client, t.PriceFeed)}
		}

		head, err := ch.client.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("current block: %w", err)
		}
		basket, err := gmx.WhitelistedTokens(ctx, head)
		if err != nil {
			return nil, err
		}

		raw, err := sampler.Collect(ctx, ch.client, c.samplerConfig(ch, head, true), sources,
			func(ctx context.Context, _ int, p sampler.Provenance) (MarketMovementEntry, error) {
				return c.readMarket(ctx, ch, gmx, fsGlp, basket, tracked, p.BlockNumber)
			})
		if err != nil {
			return nil, err
		}

		data := series.Deltas(raw, func(prev, cur sampler.Sample[MarketMovementEntry], ok bool) sampler.Sample[MarketMovementEntry] {
			cur.Data.Tokens = copyPositions(cur.Data.Tokens)
			cur.Data.Pnl = 0
			for name, pos := range cur.Data.Tokens {
				pos.Pnl = 0
				if ok {
					last := prev.Data.Tokens[name]
					pos.Pnl = last.CurrentToken * (pos.Price - last.Price)
				}
				cur.Data.Tokens[name] = pos
				cur.Data.Pnl += pos.Pnl
			}
			return cur
		})

		totals := map[string]float64{"pnl": 0}
		for _, t := range tracked {
			totals[t.name+"Pnl"] = 0
		}
		points := make([]series.Point, len(data))
		for i, d := range data {
			values := map[string]float64{"pnl": d.Data.Pnl}
			for name, pos := range d.Data.Tokens {
				values[name+"Pnl"] = pos.Pnl
			}
			for k, v := range values {
				totals[k] += v
			}
			points[i] = series.Point{Timestamp: d.Data.Timestamp, Values: values}
		}
		daily, err := series.Rollup(points, marketMovementZeroFill)
		if err != nil {
			return nil, err
		}

		return MarketMovementResult{Data: data, DailyData: nonNil(daily), Totals: totals}, nil
	}
}

func (c *Context) readMarket(
	ctx context.Context,
	ch *chain,
	gmx *contracts.GmxVault,
	fsGlp *contracts.ERC20,
	basket []common.Address,
	tracked []trackedToken,
	block uint64,
) (MarketMovementEntry, error) {
	ts, err := ch.client.BlockTimestamp(ctx, block)
	if err != nil {
		return MarketMovementEntry{}, err
	}

	total := new(big.Int)
	for _, token := range basket {
		amount, err := gmx.UsdgAmount(ctx, token, block)
		if err != nil {
			return MarketMovementEntry{}, err
		}
		total.Add(total, amount)
	}
	totalUsdg := contracts.ToFloat(total, contracts.EtherDecimals)

	glpPrice, err := ch.vault.GetPrice(ctx, false, block)
	if err != nil {
		return MarketMovementEntry{}, err
	}
	vaultGlp, err := fsGlp.BalanceOf(ctx, ch.net.Contracts.JuniorVault.Address, block)
	if err != nil {
		return MarketMovementEntry{}, err
	}
	pendingGlp, err := ch.manager.JuniorVaultGlpBalance(ctx, block)
	if err != nil {
		return MarketMovementEntry{}, err
	}

	e := MarketMovementEntry{
		Timestamp:       ts,
		VaultGlp:        contracts.ToFloat(vaultGlp, contracts.EtherDecimals) + contracts.ToFloat(pendingGlp, contracts.EtherDecimals),
		GlpPrice:        contracts.ToFloat(glpPrice, contracts.EtherDecimals),
		TotalUsdgAmount: totalUsdg,
		Tokens:          make(map[string]TokenPosition, len(tracked)),
	}
	for _, t := range tracked {
		amount, err := gmx.UsdgAmount(ctx, t.addr, block)
		if err != nil {
			return MarketMovementEntry{}, err
		}
		answer, err := t.price.LatestAnswer(ctx, block)
		if err != nil {
			return MarketMovementEntry{}, err
		}
		pos := TokenPosition{
			UsdgAmount: contracts.ToFloat(amount, contracts.EtherDecimals),
			Price:      contracts.ToFloat(answer, contracts.FeedDecimals),
		}
		if totalUsdg > 0 {
			pos.TokenWeight = pos.UsdgAmount / totalUsdg
		}
		if pos.Price > 0 {
			pos.CurrentToken = pos.TokenWeight * e.VaultGlp * e.GlpPrice / pos.Price
		}
		e.Tokens[t.name] = pos
	}
	return e, nil
}

func copyPositions(in map[string]TokenPosition) map[string]TokenPosition {
	out := make(map[string]TokenPosition, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
