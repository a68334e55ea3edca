package contracts

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// EtherDecimals is the precision of vault shares, GLP and USDG amounts.
	EtherDecimals = 18
	// UsdcDecimals is the precision of USDC and aUSDC balances.
	UsdcDecimals = 6
	// FeedDecimals is the precision of USD price feed answers.
	FeedDecimals = 8
)

// ToFloat scales a fixed-point integer down by decimals. A nil value is zero.
func ToFloat(v *big.Int, decimals int32) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v, -decimals).InexactFloat64()
}
