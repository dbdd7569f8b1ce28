package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"zuniswap/internal/fixedpoint"
)

// Bank holds native balances next to a single Token and implements Gateway.
// Both share one journal so a snapshot covers every transfer kind.
type Bank struct {
	mu      sync.RWMutex
	native  map[common.Address]*uint256.Int
	token   *Token
	journal *journal
}

var _ Gateway = (*Bank)(nil)

func NewBank(token *Token) *Bank {
	j := &journal{}
	token.mu.Lock()
	token.journal = j
	token.mu.Unlock()
	return &Bank{
		native:  make(map[common.Address]*uint256.Int),
		token:   token,
		journal: j,
	}
}

func (b *Bank) Token() *Token { return b.token }

func (b *Bank) TokenAddress() common.Address { return b.token.Address() }

func (b *Bank) TokenBalanceOf(owner common.Address) *uint256.Int {
	return b.token.BalanceOf(owner)
}

func (b *Bank) TransferToken(sender, recipient common.Address, amount *uint256.Int) error {
	return b.token.Transfer(sender, recipient, amount)
}

func (b *Bank) TransferTokenFrom(spender, owner, recipient common.Address, amount *uint256.Int) error {
	return b.token.TransferFrom(spender, owner, recipient, amount)
}

// Fund credits native balance out of thin air. Used to seed accounts.
func (b *Bank) Fund(owner common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, overflow := new(uint256.Int).AddOverflow(b.nativeLocked(owner), amount)
	if overflow {
		return ErrSupplyOverflow
	}
	b.setNative(owner, next)
	return nil
}

func (b *Bank) NativeBalanceOf(owner common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nativeLocked(owner).Clone()
}

func (b *Bank) TransferNative(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	have := b.nativeLocked(from)
	if have.Lt(amount) {
		return fmt.Errorf("%w: %s has %s native, needs %s", ErrInsufficientBalance, from.Hex(), fixedpoint.FormatUnits(have), fixedpoint.FormatUnits(amount))
	}
	if amount.IsZero() || from == to {
		return nil
	}
	b.setNative(from, new(uint256.Int).Sub(have, amount))
	b.setNative(to, new(uint256.Int).Add(b.nativeLocked(to), amount))
	return nil
}

func (b *Bank) Snapshot() int { return b.journal.snapshot() }

func (b *Bank) RevertToSnapshot(id int) { b.journal.revert(id) }

func (b *Bank) DiscardSnapshot(id int) { b.journal.discard(id) }

func (b *Bank) nativeLocked(owner common.Address) *uint256.Int {
	if v, ok := b.native[owner]; ok {
		return v
	}
	return new(uint256.Int)
}

func (b *Bank) setNative(owner common.Address, value *uint256.Int) {
	prev, existed := b.native[owner]
	b.native[owner] = value
	b.journal.append(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existed {
			b.native[owner] = prev
		} else {
			delete(b.native, owner)
		}
	})
}
