package aggregated

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ragetrade/vaultmetrics/pkg/allocation"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/contracts"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
	"github.com/ragetrade/vaultmetrics/pkg/series"
)

// userPosition is what one user holds at one stream event.
type userPosition struct {
	UserRound           uint64  `json:"userRound"`
	UserUnclaimedShares float64 `json:"userUnclaimedShares"`
	UserClaimedShares   float64 `json:"userClaimedShares"`
	UserUsdc            float64 `json:"userUsdc"`
}

// UserSharesEntry is a user's effective share of the vault at one stream event.
type UserSharesEntry struct {
	Timestamp           int64   `json:"timestamp"`
	UserRound           uint64  `json:"userRound"`
	UserUnclaimedShares float64 `json:"userUnclaimedShares"`
	UserClaimedShares   float64 `json:"userClaimedShares"`
	UserUsdc            float64 `json:"userUsdc"`
	CurrentRound        uint64  `json:"currentRound"`
	RoundUsdcBalance    float64 `json:"roundUsdcBalance"`
	RoundSharesMinted   float64 `json:"roundSharesMinted"`
	UserShares          float64 `json:"userShares"`
	TotalShares         float64 `json:"totalShares"`
}

type UserSharesResult struct {
	Data []sampler.Sample[UserSharesEntry] `json:"data,omitempty"`
}

func userSharesKey(networkName string, user common.Address) cache.Key {
	return cache.NewKey("getUserShares", networkName, user).WithTags(TagAggregated, TagUser)
}

// UserShares serves /data/aggregated/user/get-shares.
func (c *Context) UserShares(ctx context.Context, networkName string, user common.Address, excludeRawData bool) *cache.Envelope {
	return c.serve(ctx, userSharesKey(networkName, user), TTL, excludeRawData, c.userSharesFunc(networkName, user))
}

func (c *Context) fetchUserShares(ctx context.Context, networkName string, user common.Address) (UserSharesResult, *cache.Envelope, error) {
	return cache.Fetch[UserSharesResult](ctx, c.Cache, withArgs(userSharesKey(networkName, user), false), TTL, c.userSharesFunc(networkName, user))
}

func (c *Context) userSharesFunc(networkName string, user common.Address) cache.Func {
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
		sources, err := depositWithdrawRebalance(ch.net)
		if err != nil {
			return nil, err
		}

		positions, err := sampler.Collect(ctx, ch.client, c.samplerConfig(ch, totals.EndBlock, false), sources,
			func(ctx context.Context, _ int, p sampler.Provenance) (userPosition, error) {
				return readUserPosition(ctx, ch, user, p.BlockNumber)
			})
		if err != nil {
			return nil, err
		}

		global, positions := series.AlignPrefix(totals.Data, positions)
		data, err := series.Combine(global, positions, func(g sampler.Sample[TotalSharesEntry], u sampler.Sample[userPosition]) sampler.Sample[UserSharesEntry] {
			alloc := allocation.EffectiveShares(allocation.ShareInputs{
				ClaimedShares:      u.Data.UserClaimedShares,
				UnclaimedShares:    u.Data.UserUnclaimedShares,
				PendingDeposit:     u.Data.UserUsdc,
				UserRound:          u.Data.UserRound,
				CurrentRound:       g.Data.CurrentRound,
				RoundSharesMinted:  g.Data.RoundSharesMinted,
				RoundPooledBalance: g.Data.RoundUsdcBalance,
				TotalShares:        g.Data.TotalShares,
			})
			return sampler.Sample[UserSharesEntry]{Provenance: u.Provenance, Data: UserSharesEntry{
				Timestamp:           g.Data.Timestamp,
				UserRound:           u.Data.UserRound,
				UserUnclaimedShares: u.Data.UserUnclaimedShares,
				UserClaimedShares:   u.Data.UserClaimedShares,
				UserUsdc:            u.Data.UserUsdc,
				CurrentRound:        g.Data.CurrentRound,
				RoundUsdcBalance:    g.Data.RoundUsdcBalance,
				RoundSharesMinted:   g.Data.RoundSharesMinted,
				UserShares:          alloc.UserShares,
				TotalShares:         alloc.TotalShares,
			}}
		})
		if err != nil {
			return nil, err
		}
		return fresh.Compose(UserSharesResult{Data: data}), nil
	}
}

func readUserPosition(ctx context.Context, ch *chain, user common.Address, block uint64) (userPosition, error) {
	deposit, err := ch.manager.UserDeposits(ctx, user, block)
	if err != nil {
		return userPosition{}, err
	}
	unclaimed, err := ch.manager.UnclaimedShares(ctx, user, block)
	if err != nil {
		return userPosition{}, err
	}
	claimed, err := ch.vault.BalanceOf(ctx, user, block)
	if err != nil {
		return userPosition{}, err
	}
	usdc, err := ch.manager.UsdcBalance(ctx, user, block)
	if err != nil {
		return userPosition{}, err
	}
	var round uint64
	if deposit.Round != nil {
		round = deposit.Round.Uint64()
	}
	return userPosition{
		UserRound:           round,
		UserUnclaimedShares: contracts.ToFloat(unclaimed, contracts.EtherDecimals),
		UserClaimedShares:   contracts.ToFloat(claimed, contracts.EtherDecimals),
		UserUsdc:            contracts.ToFloat(usdc, contracts.UsdcDecimals),
	}, nil
}
