package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zuniswap/internal/fixedpoint"
)

// Token is an in-memory fungible token with ERC-20 balance and allowance
// semantics.
type Token struct {
	mu          sync.RWMutex
	address     common.Address
	name        string
	symbol      string
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	journal     *journal
}

func NewToken(address common.Address, name, symbol string) *Token {
	return &Token{
		address:     address,
		name:        name,
		symbol:      symbol,
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		journal:     &journal{},
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return 18 }

func (t *Token) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSupply.Clone()
}

func (t *Token) BalanceOf(owner common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[owner]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Mint credits amount to the holder and grows the supply.
func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	prevSupply := t.totalSupply
	t.totalSupply = supply
	t.journal.append(func() {
		t.mu.Lock()
		t.totalSupply = prevSupply
		t.mu.Unlock()
	})
	t.setBalance(to, new(uint256.Int).Add(t.balanceLocked(to), amount))
	return nil
}

// Approve replaces spender's allowance over owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(owner, spender, amount.Clone())
}

func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(from, to, amount)
}

// TransferFrom spends spender's allowance and moves amount out of from.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := t.allowanceLocked(from, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: spender %s has %s, needs %s", ErrInsufficientAllowance, spender.Hex(), fixedpoint.FormatUnits(allowed), fixedpoint.FormatUnits(amount))
	}
	if err := t.transferLocked(from, to, amount); err != nil {
		return err
	}
	t.setAllowance(from, spender, new(uint256.Int).Sub(allowed, amount))
	return nil
}

func (t *Token) transferLocked(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	have := t.balanceLocked(from)
	if have.Lt(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from.Hex(), fixedpoint.FormatUnits(have), t.symbol, fixedpoint.FormatUnits(amount))
	}
	if amount.IsZero() || from == to {
		return nil
	}
	t.setBalance(from, new(uint256.Int).Sub(have, amount))
	t.setBalance(to, new(uint256.Int).Add(t.balanceLocked(to), amount))
	return nil
}

func (t *Token) balanceLocked(owner common.Address) *uint256.Int {
	if b, ok := t.balances[owner]; ok {
		return b
	}
	return new(uint256.Int)
}

func (t *Token) allowanceLocked(owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a
	}
	return new(uint256.Int)
}

func (t *Token) setBalance(owner common.Address, value *uint256.Int) {
	prev, existed := t.balances[owner]
	t.balances[owner] = value
	t.journal.append(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existed {
			t.balances[owner] = prev
		} else {
			delete(t.balances, owner)
		}
	})
}

func (t *Token) setAllowance(owner, spender common.Address, value *uint256.Int) {
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = spenders
	}
	prev, existed := spenders[spender]
	spenders[spender] = value
	t.journal.append(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existed {
			t.allowances[owner][spender] = prev
		} else {
			delete(t.allowances[owner], spender)
		}
	})
}
