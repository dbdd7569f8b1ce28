package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/model"
	"zuniswap/internal/pricing"
)

// SwapBaseForToken sells baseAmountSent of the native asset for at least
// minTokenOut tokens and returns the tokens delivered.
func (p *Pool) SwapBaseForToken(caller common.Address, minTokenOut, baseAmountSent *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out *uint256.Int
	err := p.withAbsorbed(func() (err error) {
		out, err = p.swapBaseForToken(caller, orZero(minTokenOut), orZero(baseAmountSent))
		return err
	})
	if err != nil {
		return nil, p.rejected(model.EventSwapBaseForToken, caller, err)
	}
	return out, nil
}

func (p *Pool) swapBaseForToken(caller common.Address, minTokenOut, baseIn *uint256.Int) (*uint256.Int, error) {
	tokenOut, err := pricing.OutputAmount(baseIn, p.baseReserve, p.tokenReserve)
	if err != nil {
		return nil, err
	}
	if tokenOut.Lt(minTokenOut) {
		return nil, fmt.Errorf("%w: got %s, min %s", ErrInsufficientOutputAmount, fixedpoint.FormatUnits(tokenOut), fixedpoint.FormatUnits(minTokenOut))
	}
	if baseIn.IsZero() {
		return tokenOut, nil
	}
	if caller == (common.Address{}) {
		return nil, ErrInvalidAddress
	}

	baseAfter, err := pricing.Add(p.baseReserve, baseIn)
	if err != nil {
		return nil, err
	}
	c := change{
		kind:         model.EventSwapBaseForToken,
		actor:        caller,
		baseIn:       baseIn,
		tokenOut:     tokenOut,
		baseReserve:  baseAfter,
		tokenReserve: new(uint256.Int).Sub(p.tokenReserve, tokenOut),
		totalShares:  p.shares.TotalSupply(),
	}
	err = p.commit(c,
		func() error {
			if err := p.gateway.TransferNative(caller, p.address, baseIn); err != nil {
				return fmt.Errorf("receive base: %w", err)
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
		return nil, err
	}
	return tokenOut, nil
}

// SwapTokenForBase sells tokenAmountSent tokens for at least minBaseOut of
// the native asset and returns the native amount delivered.
func (p *Pool) SwapTokenForBase(caller common.Address, tokenAmountSent, minBaseOut *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out *uint256.Int
	err := p.withAbsorbed(func() (err error) {
		out, err = p.swapTokenForBase(caller, orZero(tokenAmountSent), orZero(minBaseOut))
		return err
	})
	if err != nil {
		return nil, p.rejected(model.EventSwapTokenForBase, caller, err)
	}
	return out, nil
}

func (p *Pool) swapTokenForBase(caller common.Address, tokenIn, minBaseOut *uint256.Int) (*uint256.Int, error) {
	baseOut, err := pricing.OutputAmount(tokenIn, p.tokenReserve, p.baseReserve)
	if err != nil {
		return nil, err
	}
	if baseOut.Lt(minBaseOut) {
		return nil, fmt.Errorf("%w: got %s, min %s", ErrInsufficientOutputAmount, fixedpoint.FormatUnits(baseOut), fixedpoint.FormatUnits(minBaseOut))
	}
	if tokenIn.IsZero() {
		return baseOut, nil
	}
	if caller == (common.Address{}) {
		return nil, ErrInvalidAddress
	}

	tokenAfter, err := pricing.Add(p.tokenReserve, tokenIn)
	if err != nil {
		return nil, err
	}
	c := change{
		kind:         model.EventSwapTokenForBase,
		actor:        caller,
		tokenIn:      tokenIn,
		baseOut:      baseOut,
		baseReserve:  new(uint256.Int).Sub(p.baseReserve, baseOut),
		tokenReserve: tokenAfter,
		totalShares:  p.shares.TotalSupply(),
	}
	err = p.commit(c,
		func() error {
			if err := p.gateway.TransferTokenFrom(p.address, caller, p.address, tokenIn); err != nil {
				return fmt.Errorf("pull token: %w", err)
			}
			return nil
		},
		func() error {
			if err := p.gateway.TransferNative(p.address, caller, baseOut); err != nil {
				return fmt.Errorf("send base: %w", err)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return baseOut, nil
}
