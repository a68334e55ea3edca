package aggregated

import (
	"context"
	"time"

	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"go.uber.org/zap"
)

type globalMetric struct {
	name string
	run  func(ctx context.Context, networkName string, excludeRawData bool) *cache.Envelope
}

// Warm computes every global metric of every network so requests find warm entries.
// Entries that are still valid are left untouched.
func (c *Context) Warm(ctx context.Context) {
	metrics := []globalMetric{
		{name: "total-shares", run: c.TotalShares},
		{name: "aave-lends", run: c.AaveLends},
		{name: "market-movement", run: c.MarketMovement},
	}
	for _, name := range c.Networks.Names() {
		for _, m := range metrics {
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			env := m.run(ctx, name, false)
			if env.Failed() {
				c.Logger.Warn("Warm-up failed",
					zap.String("network", name),
					zap.String("metric", m.name),
					zap.Int("status", env.Status),
					zap.String("error", env.Error),
				)
				continue
			}
			c.Logger.Info("Warm-up done",
				zap.String("network", name),
				zap.String("metric", m.name),
				zap.Int64("cache_timestamp", env.CacheTimestamp),
				zap.Duration("took", time.Since(start)),
			)
		}
	}
}
