package allocation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProRata(t *testing.T) {
	tests := []struct {
		name                string
		global, user, total float64
		want                float64
	}{
		{name: "quarter", global: 40, user: 25, total: 100, want: 10},
		{name: "no shares outstanding", global: 40, user: 25, total: 0, want: 0},
		{name: "negative metric", global: -8, user: 1, total: 4, want: -2},
		{name: "infinite metric", global: math.Inf(1), user: 1, total: 4, want: 0},
		{name: "nan metric", global: math.NaN(), user: 1, total: 4, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProRata(tt.global, tt.user, tt.total))
		})
	}
}

func TestProRataZeroTotalIsNeverNaN(t *testing.T) {
	for _, g := range []float64{0, 1, -1, 1e300, -1e300, math.SmallestNonzeroFloat64} {
		for _, u := range []float64{0, 1, 1e18} {
			v := ProRata(g, u, 0)
			assert.False(t, math.IsNaN(v))
			assert.Zero(t, v)
		}
	}
}

func TestPendingCredit(t *testing.T) {
	base := ShareInputs{PendingDeposit: 100, UserRound: 3, CurrentRound: 3, RoundSharesMinted: 50, RoundPooledBalance: 200}
	assert.Equal(t, 25.0, PendingCredit(base))

	stale := base
	stale.UserRound = 2
	assert.Zero(t, PendingCredit(stale))

	for _, deposit := range []float64{0, 1, 1e12} {
		for _, minted := range []float64{0, 1, 1e24} {
			in := ShareInputs{PendingDeposit: deposit, RoundSharesMinted: minted, RoundPooledBalance: 0}
			assert.Zero(t, PendingCredit(in))
		}
	}
}

func TestEffectiveShares(t *testing.T) {
	in := ShareInputs{
		ClaimedShares:      10,
		UnclaimedShares:    5,
		PendingDeposit:     100,
		UserRound:          3,
		CurrentRound:       3,
		RoundSharesMinted:  50,
		RoundPooledBalance: 200,
		TotalShares:        1000,
	}
	got := EffectiveShares(in)
	assert.Equal(t, ShareAllocation{UserShares: 40, TotalShares: 1000}, got)
	assert.Equal(t, 4.0, got.Of(100))

	in.TotalShares = 20
	assert.Equal(t, 20.0, EffectiveShares(in).UserShares)

	in.TotalShares = 0
	assert.Equal(t, 40.0, EffectiveShares(in).UserShares)
	assert.Zero(t, EffectiveShares(in).Of(100))
}
