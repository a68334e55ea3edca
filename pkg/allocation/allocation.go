// Package allocation attributes pooled vault metrics to individual users.
package allocation

import "math"

// ShareInputs are the reads needed to value a user's position at one block.
type ShareInputs struct {
	ClaimedShares   float64
	UnclaimedShares float64
	// PendingDeposit is the user's batched deposit not yet converted to shares.
	PendingDeposit float64
	UserRound      uint64
	CurrentRound   uint64
	// RoundSharesMinted and RoundPooledBalance describe the round open for settlement.
	RoundSharesMinted  float64
	RoundPooledBalance float64
	TotalShares        float64
}

// ShareAllocation is a user's share of the vault at one block.
type ShareAllocation struct {
	UserShares  float64 `json:"userShares"`
	TotalShares float64 `json:"totalShares"`
}

// PendingCredit converts a pending deposit into the shares it will receive.
// It is zero unless the deposit belongs to the round currently open and that
// round holds a positive pooled balance.
func PendingCredit(in ShareInputs) float64 {
	if in.RoundPooledBalance <= 0 || in.UserRound != in.CurrentRound {
		return 0
	}
	credit := in.PendingDeposit * in.RoundSharesMinted / in.RoundPooledBalance
	if math.IsNaN(credit) || math.IsInf(credit, 0) {
		return 0
	}
	return credit
}

// EffectiveShares is claimed + unclaimed + pending credit, clamped to [0, TotalShares]
// when the vault has shares outstanding.
func EffectiveShares(in ShareInputs) ShareAllocation {
	user := in.ClaimedShares + in.UnclaimedShares + PendingCredit(in)
	if in.TotalShares > 0 {
		user = math.Max(0, math.Min(user, in.TotalShares))
	}
	return ShareAllocation{UserShares: user, TotalShares: in.TotalShares}
}

// ProRata allocates global by userShares/totalShares. Without outstanding
// shares, or when the result is not finite, the allocation is 0.
func ProRata(global, userShares, totalShares float64) float64 {
	if totalShares == 0 {
		return 0
	}
	v := global * userShares / totalShares
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Of allocates global by the allocation's share.
func (a ShareAllocation) Of(global float64) float64 {
	return ProRata(global, a.UserShares, a.TotalShares)
}
