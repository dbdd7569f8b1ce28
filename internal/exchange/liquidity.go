package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/ledger"
	"zuniswap/internal/model"
	"zuniswap/internal/pricing"
)

// AddLiquidity deposits baseAmountSent of the native asset together with the
// token amount the current reserve ratio requires, capped by maxTokenAmount.
// The first deposit sets the ratio and takes maxTokenAmount as-is. It returns
// the shares minted to caller.
func (p *Pool) AddLiquidity(caller common.Address, maxTokenAmount, baseAmountSent *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var shares *uint256.Int
	err := p.withAbsorbed(func() (err error) {
		shares, err = p.addLiquidity(caller, orZero(maxTokenAmount), orZero(baseAmountSent))
		return err
	})
	if err != nil {
		return nil, p.rejected(model.EventAddLiquidity, caller, err)
	}
	return shares, nil
}

func (p *Pool) addLiquidity(caller common.Address, maxTokenAmount, baseAmount *uint256.Int) (*uint256.Int, error) {
	if caller == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	total := p.shares.TotalSupply()

	var tokenAmount *uint256.Int
	if total.IsZero() {
		if baseAmount.IsZero() != maxTokenAmount.IsZero() {
			return nil, ErrUnbalancedDeposit
		}
		tokenAmount = maxTokenAmount
	} else {
		required, err := ledger.RequiredTokenAmount(baseAmount, p.baseReserve, p.tokenReserve)
		if err != nil {
			return nil, err
		}
		if required.Gt(maxTokenAmount) {
			return nil, fmt.Errorf("%w: need %s, max %s", ErrInsufficientTokenAmount, fixedpoint.FormatUnits(required), fixedpoint.FormatUnits(maxTokenAmount))
		}
		tokenAmount = required
	}

	shares, err := ledger.SharesForDeposit(baseAmount, tokenAmount, p.baseReserve, p.tokenReserve, total)
	if err != nil {
		return nil, err
	}
	if baseAmount.IsZero() && tokenAmount.IsZero() && shares.IsZero() {
		return shares, nil
	}

	baseBefore, tokenBefore := p.baseReserve, p.tokenReserve
	if total.IsZero() {
		// assets sent to the empty pool join the first deposit
		baseBefore = p.gateway.NativeBalanceOf(p.address)
		tokenBefore = p.gateway.TokenBalanceOf(p.address)
	}
	baseAfter, err := pricing.Add(baseBefore, baseAmount)
	if err != nil {
		return nil, err
	}
	tokenAfter, err := pricing.Add(tokenBefore, tokenAmount)
	if err != nil {
		return nil, err
	}
	totalAfter, err := pricing.Add(total, shares)
	if err != nil {
		return nil, err
	}

	c := change{
		kind:         model.EventAddLiquidity,
		actor:        caller,
		shares:       shares,
		mint:         true,
		baseIn:       baseAmount,
		tokenIn:      tokenAmount,
		baseReserve:  baseAfter,
		tokenReserve: tokenAfter,
		totalShares:  totalAfter,
	}
	err = p.commit(c,
		func() error {
			if err := p.gateway.TransferNative(caller, p.address, baseAmount); err != nil {
				return fmt.Errorf("receive base: %w", err)
			}
			return nil
		},
		func() error {
			if err := p.gateway.TransferTokenFrom(p.address, caller, p.address, tokenAmount); err != nil {
				return fmt.Errorf("pull token: %w", err)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// RemoveLiquidity burns shares from caller and pays out the proportional
// part of both reserves.
func (p *Pool) RemoveLiquidity(caller common.Address, shares *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var baseOut, tokenOut *uint256.Int
	err := p.withAbsorbed(func() (err error) {
		baseOut, tokenOut, err = p.removeLiquidity(caller, orZero(shares))
		return err
	})
	if err != nil {
		return nil, nil, p.rejected(model.EventRemoveLiquidity, caller, err)
	}
	return baseOut, tokenOut, nil
}

func (p *Pool) removeLiquidity(caller common.Address, shares *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	baseOut, tokenOut, err := p.shares.AmountsForBurn(caller, shares, p.baseReserve, p.tokenReserve)
	if err != nil {
		return nil, nil, err
	}
	if shares.IsZero() {
		return baseOut, tokenOut, nil
	}

	total := p.shares.TotalSupply()
	c := change{
		kind:         model.EventRemoveLiquidity,
		actor:        caller,
		shares:       shares,
		baseOut:      baseOut,
		tokenOut:     tokenOut,
		baseReserve:  new(uint256.Int).Sub(p.baseReserve, baseOut),
		tokenReserve: new(uint256.Int).Sub(p.tokenReserve, tokenOut),
		totalShares:  new(uint256.Int).Sub(total, shares),
	}
	err = p.commit(c,
		func() error {
			if err := p.gateway.TransferNative(p.address, caller, baseOut); err != nil {
				return fmt.Errorf("send base: %w", err)
			}
			return nil
		},
		func() error {
			if err := p.gateway.TransferToken(p.address, caller, tokenOut); err != nil {
				return fmt.Errorf("send token: %w", err)
			}
			return nil
		},
	)
	if err != nil {
		return nil, nil, err
	}
	return baseOut, tokenOut, nil
}
