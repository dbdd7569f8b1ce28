package ledger

import (
	"github.com/holiman/uint256"

	"zuniswap/internal/pricing"
)

// SharesForDeposit returns the shares minted for a deposit. The first deposit
// defines the share unit 1:1 with the base amount; later deposits mint in
// proportion to the base reserve. tokenAmount is expected to have been checked
// against RequiredTokenAmount already.
func SharesForDeposit(baseAmount, tokenAmount, baseReserve, tokenReserve, totalShares *uint256.Int) (*uint256.Int, error) {
	if totalShares.IsZero() {
		return baseAmount.Clone(), nil
	}
	return pricing.MulDiv(baseAmount, totalShares, baseReserve)
}

// RequiredTokenAmount is the token amount that keeps the reserve ratio when
// baseAmount is deposited.
func RequiredTokenAmount(baseAmount, baseReserve, tokenReserve *uint256.Int) (*uint256.Int, error) {
	return pricing.MulDiv(baseAmount, tokenReserve, baseReserve)
}

// AmountsForBurn returns the base and token amounts released by burning
// shares. Burning the whole supply releases both reserves exactly.
func AmountsForBurn(shares, baseReserve, tokenReserve, totalShares *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if shares.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}
	if totalShares.Lt(shares) {
		return nil, nil, ErrInsufficientShareBalance
	}
	baseOut, err := pricing.MulDiv(shares, baseReserve, totalShares)
	if err != nil {
		return nil, nil, err
	}
	tokenOut, err := pricing.MulDiv(shares, tokenReserve, totalShares)
	if err != nil {
		return nil, nil, err
	}
	return baseOut, tokenOut, nil
}
