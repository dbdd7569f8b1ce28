package aggregate

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/pricing"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(fixedpoint.Decimals), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(fixedpoint.Decimals)
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeFeeRates(feeBase, feeToken, tvlBase, tvlToken *big.Int) (*string, *string) {
	var feeRateBase *string
	var feeRateToken *string

	if rate := computeRateFromInt(feeBase, tvlBase); rate != "" {
		feeRateBase = &rate
	}
	if rate := computeRateFromInt(feeToken, tvlToken); rate != "" {
		feeRateToken = &rate
	}
	return feeRateBase, feeRateToken
}

func computeRateFromInt(fee *big.Int, tvl *big.Int) string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, tvl)
	return rat.FloatString(ratioScale)
}

// computePrice returns the spot price of the base asset in tokens.
func computePrice(baseReserve, tokenReserve *big.Int) *string {
	a, overflowA := uint256.FromBig(baseReserve)
	b, overflowB := uint256.FromBig(tokenReserve)
	if overflowA || overflowB {
		return nil
	}
	price, err := pricing.SpotPrice(a, b)
	if err != nil {
		return nil
	}
	val := formatTokenAmount(price.ToBig())
	return &val
}

// computeAPR annualizes the window's fees valued in the base asset against
// the pool's value in the base asset (twice the base reserve).
func computeAPR(feeBase, feeToken, baseReserve, tokenReserve *big.Int, windowSeconds uint64) *string {
	if windowSeconds == 0 || baseReserve == nil || baseReserve.Sign() == 0 || tokenReserve == nil || tokenReserve.Sign() == 0 {
		return nil
	}
	if feeBase.Sign() == 0 && feeToken.Sign() == 0 {
		return nil
	}

	fees := new(big.Rat).SetInt(feeBase)
	tokenFees := new(big.Rat).SetFrac(new(big.Int).Mul(feeToken, baseReserve), tokenReserve)
	fees.Add(fees, tokenFees)

	tvl := new(big.Rat).SetInt(new(big.Int).Lsh(baseReserve, 1))
	rate := new(big.Rat).Quo(fees, tvl)

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rate, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}
