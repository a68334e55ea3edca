package aggregated

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ragetrade/vaultmetrics/pkg/allocation"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/sampler"
	"github.com/ragetrade/vaultmetrics/pkg/series"
)

// UserAaveLendsEntry is the user's part of the junior vault's aUSDC interest at one event.
type UserAaveLendsEntry struct {
	Timestamp               int64   `json:"timestamp"`
	AUsdcInterestJunior     float64 `json:"aUsdcInterestJunior"`
	UserShares              float64 `json:"userShares"`
	TotalShares             float64 `json:"totalShares"`
	UserAUsdcInterestJunior float64 `json:"userAUsdcInterestJunior"`
}

type UserAaveLendsResult struct {
	Data                         []sampler.Sample[UserAaveLendsEntry] `json:"data,omitempty"`
	DailyData                    []series.DailyBucket                 `json:"dailyData"`
	UserTotalAUsdcInterestJunior float64                              `json:"userTotalAUsdcInterestJunior"`
}

func userAaveLendsKey(networkName string, user common.Address) cache.Key {
	return cache.NewKey("getUserAaveLends", networkName, user).WithTags(TagAggregated, TagUser)
}

// UserAaveLends serves /data/aggregated/user/get-aave-lends.
func (c *Context) UserAaveLends(ctx context.Context, networkName string, user common.Address, excludeRawData bool) *cache.Envelope {
	return c.serve(ctx, userAaveLendsKey(networkName, user), TTL, excludeRawData, c.userAaveLendsFunc(networkName, user))
}

func (c *Context) userAaveLendsFunc(networkName string, user common.Address) cache.Func {
	return func(ctx context.Context) (any, error) {
		var fresh cache.Freshness
		lends, env, err := c.fetchAaveLends(ctx, networkName)
		if err != nil {
			return nil, err
		}
		fresh.Observe(env)
		shares, env, err := c.fetchUserShares(ctx, networkName, user)
		if err != nil {
			return nil, err
		}
		fresh.Observe(env)

		lendsData, sharesData := series.AlignPrefix(lends.Data, shares.Data)
		data, err := series.Combine(lendsData, sharesData, func(l sampler.Sample[AaveLendsEntry], s sampler.Sample[UserSharesEntry]) sampler.Sample[UserAaveLendsEntry] {
			return sampler.Sample[UserAaveLendsEntry]{Provenance: l.Provenance, Data: UserAaveLendsEntry{
				Timestamp:               l.Data.Timestamp,
				AUsdcInterestJunior:     l.Data.AUsdcInterestJunior,
				UserShares:              s.Data.UserShares,
				TotalShares:             s.Data.TotalShares,
				UserAUsdcInterestJunior: allocation.ProRata(l.Data.AUsdcInterestJunior, s.Data.UserShares, s.Data.TotalShares),
			}}
		})
		if err != nil {
			return nil, err
		}

		var total float64
		points := make([]series.Point, len(data))
		for i, d := range data {
			total += d.Data.UserAUsdcInterestJunior
			points[i] = series.Point{Timestamp: d.Data.Timestamp, Values: map[string]float64{
				"userAUsdcInterestJunior": d.Data.UserAUsdcInterestJunior,
			}}
		}
		daily, err := series.Rollup(points, aaveLendsZeroFill)
		if err != nil {
			return nil, err
		}

		return fresh.Compose(UserAaveLendsResult{Data: data, DailyData: nonNil(daily), UserTotalAUsdcInterestJunior: total}), nil
	}
}
