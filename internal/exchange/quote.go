package exchange

import (
	"github.com/holiman/uint256"

	"zuniswap/internal/pricing"
)

// GetReserve returns the tracked token reserve.
func (p *Pool) GetReserve() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenReserve.Clone()
}

// GetBaseReserve returns the tracked native reserve.
func (p *Pool) GetBaseReserve() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baseReserve.Clone()
}

func (p *Pool) GetPrice(reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	return pricing.SpotPrice(orZero(reserveA), orZero(reserveB))
}

// GetTokenAmount quotes the tokens a swap of baseIn would deliver now.
func (p *Pool) GetTokenAmount(baseIn *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pricing.OutputAmount(orZero(baseIn), p.baseReserve, p.tokenReserve)
}

// GetEthAmount quotes the native amount a swap of tokenIn would deliver now.
func (p *Pool) GetEthAmount(tokenIn *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pricing.OutputAmount(orZero(tokenIn), p.tokenReserve, p.baseReserve)
}
