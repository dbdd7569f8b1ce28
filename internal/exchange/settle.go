package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/model"
)

// change describes one operation's effect on the pool. Reserves and supply
// are the values after the operation.
type change struct {
	kind   string
	actor  common.Address
	shares *uint256.Int
	mint   bool

	baseIn, baseOut   *uint256.Int
	tokenIn, tokenOut *uint256.Int

	baseReserve  *uint256.Int
	tokenReserve *uint256.Int
	totalShares  *uint256.Int
}

// commit runs the gateway legs inside one snapshot, reconciles the result
// and only then writes reserves and shares. Any failure reverts the gateway
// and leaves the pool untouched.
func (p *Pool) commit(c change, legs ...func() error) error {
	id := p.gateway.Snapshot()
	for _, leg := range legs {
		if err := leg(); err != nil {
			p.gateway.RevertToSnapshot(id)
			return err
		}
	}
	if err := p.reconcile(c.baseReserve, c.tokenReserve, c.totalShares); err != nil {
		p.gateway.RevertToSnapshot(id)
		return err
	}

	if c.shares != nil {
		var err error
		if c.mint {
			err = p.shares.Mint(c.actor, c.shares)
		} else {
			err = p.shares.Burn(c.actor, c.shares)
		}
		if err != nil {
			p.gateway.RevertToSnapshot(id)
			return fmt.Errorf("update shares: %w", err)
		}
	}

	p.baseReserve = c.baseReserve
	p.tokenReserve = c.tokenReserve
	p.gateway.DiscardSnapshot(id)
	p.record(c)
	return nil
}

// reconcile checks the gateway holds at least the reserves and that supply
// and reserves agree on whether the pool is empty. Holding more than the
// reserves is legal: anyone can send assets to the pool address.
func (p *Pool) reconcile(base, token, total *uint256.Int) error {
	if held := p.gateway.NativeBalanceOf(p.address); held.Lt(base) {
		return fmt.Errorf("%w: holds %s native, reserve %s", ErrReserveMismatch, fixedpoint.String(held), fixedpoint.String(base))
	}
	if held := p.gateway.TokenBalanceOf(p.address); held.Lt(token) {
		return fmt.Errorf("%w: holds %s token, reserve %s", ErrReserveMismatch, fixedpoint.String(held), fixedpoint.String(token))
	}
	empty := total.IsZero()
	if base.IsZero() != empty || token.IsZero() != empty {
		return fmt.Errorf("%w: supply %s with reserves %s/%s", ErrReserveMismatch,
			fixedpoint.String(total), fixedpoint.String(base), fixedpoint.String(token))
	}
	return nil
}

// withAbsorbed runs op against reserves that include whatever was sent
// straight to an active pool. The absorbed amounts are kept only when op
// commits; rejected and no-op calls leave the reserves as they were.
func (p *Pool) withAbsorbed(op func() error) error {
	prevBase, prevToken, seq := p.baseReserve, p.tokenReserve, p.seq
	if err := p.absorb(); err != nil {
		return err
	}
	err := op()
	if err != nil || p.seq == seq {
		p.baseReserve, p.tokenReserve = prevBase, prevToken
	}
	return err
}

// absorb raises the reserves of an active pool to the gateway balances. An
// empty pool keeps its surplus pending; the first deposit picks it up.
func (p *Pool) absorb() error {
	heldBase := p.gateway.NativeBalanceOf(p.address)
	heldToken := p.gateway.TokenBalanceOf(p.address)
	if heldBase.Lt(p.baseReserve) || heldToken.Lt(p.tokenReserve) {
		return fmt.Errorf("%w: holds %s/%s, reserves %s/%s", ErrReserveMismatch,
			fixedpoint.String(heldBase), fixedpoint.String(heldToken),
			fixedpoint.String(p.baseReserve), fixedpoint.String(p.tokenReserve))
	}
	if p.shares.TotalSupply().IsZero() {
		return nil
	}
	if heldBase.Gt(p.baseReserve) || heldToken.Gt(p.tokenReserve) {
		p.logger.Debug("absorbed direct transfer",
			zap.String("base_surplus", fixedpoint.String(new(uint256.Int).Sub(heldBase, p.baseReserve))),
			zap.String("token_surplus", fixedpoint.String(new(uint256.Int).Sub(heldToken, p.tokenReserve))),
		)
		p.baseReserve, p.tokenReserve = heldBase, heldToken
	}
	return nil
}

// CheckInvariants verifies the tracked reserves against the gateway and the
// empty/active relation between reserves and share supply.
func (p *Pool) CheckInvariants() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reconcile(p.baseReserve, p.tokenReserve, p.shares.TotalSupply())
}

func (p *Pool) record(c change) {
	p.seq++
	ev := model.PoolEvent{
		Pool:         p.address.Hex(),
		Token:        p.token.Hex(),
		Seq:          p.seq,
		Kind:         c.kind,
		Actor:        c.actor.Hex(),
		BaseIn:       fixedpoint.String(orZero(c.baseIn)),
		BaseOut:      fixedpoint.String(orZero(c.baseOut)),
		TokenIn:      fixedpoint.String(orZero(c.tokenIn)),
		TokenOut:     fixedpoint.String(orZero(c.tokenOut)),
		Shares:       fixedpoint.String(orZero(c.shares)),
		BaseReserve:  fixedpoint.String(c.baseReserve),
		TokenReserve: fixedpoint.String(c.tokenReserve),
		TotalShares:  fixedpoint.String(c.totalShares),
		Timestamp:    uint64(p.now().Unix()),
	}
	p.events = append(p.events, ev)

	p.logger.Debug("pool operation",
		zap.String("kind", ev.Kind),
		zap.String("actor", ev.Actor),
		zap.Uint64("seq", ev.Seq),
		zap.String("base_reserve", fixedpoint.FormatUnits(c.baseReserve)),
		zap.String("token_reserve", fixedpoint.FormatUnits(c.tokenReserve)),
	)
}

func (p *Pool) rejected(kind string, actor common.Address, err error) error {
	p.logger.Debug("pool operation rejected",
		zap.String("kind", kind),
		zap.String("actor", actor.Hex()),
		zap.Error(err),
	)
	return err
}
