// Package asset provides the value-moving capability the exchange relies on:
// transfers of the paired token and of the native base asset.
package asset

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Gateway moves the paired token and the native asset. Snapshot and
// RevertToSnapshot give callers all-or-nothing semantics over a sequence of
// transfers, the way an EVM state database journals a transaction.
type Gateway interface {
	TokenAddress() common.Address
	TokenBalanceOf(owner common.Address) *uint256.Int
	// TransferToken moves amount of the token out of sender's balance.
	TransferToken(sender, recipient common.Address, amount *uint256.Int) error
	// TransferTokenFrom moves amount from owner using spender's allowance.
	TransferTokenFrom(spender, owner, recipient common.Address, amount *uint256.Int) error

	NativeBalanceOf(owner common.Address) *uint256.Int
	TransferNative(from, to common.Address, amount *uint256.Int) error

	Snapshot() int
	RevertToSnapshot(id int)
	// DiscardSnapshot keeps every change made since id.
	DiscardSnapshot(id int)
}
