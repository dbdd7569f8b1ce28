// Package ledger tracks pool-share ownership: the total minted supply and the
// balance of every address that has ever provided liquidity.
package ledger

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zuniswap/internal/pricing"
)

// Ledger is a minimal fungible-token balance sheet for pool shares. It is not
// safe for concurrent use; the owning pool serializes access.
type Ledger struct {
	name        string
	symbol      string
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
}

func New(name, symbol string) *Ledger {
	return &Ledger{
		name:        name,
		symbol:      symbol,
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) Name() string   { return l.name }
func (l *Ledger) Symbol() string { return l.symbol }

// TotalSupply returns a copy of the minted supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	return l.totalSupply.Clone()
}

// BalanceOf returns a copy of the holder's balance; unknown holders have zero.
func (l *Ledger) BalanceOf(holder common.Address) *uint256.Int {
	if bal, ok := l.balances[holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Mint credits amount to holder and grows the supply. Nothing changes on error.
func (l *Ledger) Mint(holder common.Address, amount *uint256.Int) error {
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, err := pricing.Add(l.totalSupply, amount)
	if err != nil {
		return err
	}
	bal, err := pricing.Add(l.BalanceOf(holder), amount)
	if err != nil {
		return err
	}
	l.totalSupply = supply
	l.balances[holder] = bal
	return nil
}

// Burn debits amount from holder and shrinks the supply.
func (l *Ledger) Burn(holder common.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(holder)
	if bal.Lt(amount) {
		return ErrInsufficientShareBalance
	}
	l.balances[holder] = bal.Sub(bal, amount)
	l.totalSupply = new(uint256.Int).Sub(l.totalSupply, amount)
	return nil
}

// Transfer moves shares between holders without touching the supply.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBal := l.BalanceOf(from)
	if fromBal.Lt(amount) {
		return ErrInsufficientShareBalance
	}
	if from == to {
		return nil
	}
	toBal := l.BalanceOf(to)
	l.balances[from] = fromBal.Sub(fromBal, amount)
	l.balances[to] = toBal.Add(toBal, amount)
	return nil
}

// Holders lists every address with a recorded balance, including zero ones,
// in byte order.
func (l *Ledger) Holders() []common.Address {
	out := make([]common.Address, 0, len(l.balances))
	for holder := range l.balances {
		out = append(out, holder)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

// AmountsForBurn checks holder's balance and returns what burning shares
// withdraws from the given reserves at the current supply.
func (l *Ledger) AmountsForBurn(holder common.Address, shares, baseReserve, tokenReserve *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if l.BalanceOf(holder).Lt(shares) {
		return nil, nil, ErrInsufficientShareBalance
	}
	return AmountsForBurn(shares, baseReserve, tokenReserve, l.totalSupply)
}
