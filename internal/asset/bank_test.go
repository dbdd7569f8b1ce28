package asset

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	exchange = common.HexToAddress("0x00000000000000000000000000000000000e8c00")
	tokenAt  = common.HexToAddress("0x0000000000000000000000000000000000007e57")
)

func newBank(t *testing.T) *Bank {
	t.Helper()
	bank := NewBank(NewToken(tokenAt, "Token", "TKN"))
	require.NoError(t, bank.Fund(alice, uint256.NewInt(1000)))
	require.NoError(t, bank.Token().Mint(alice, uint256.NewInt(500)))
	return bank
}

func TestTokenTransferFromSpendsAllowance(t *testing.T) {
	bank := newBank(t)
	tok := bank.Token()
	tok.Approve(alice, exchange, uint256.NewInt(200))

	require.NoError(t, bank.TransferTokenFrom(exchange, alice, exchange, uint256.NewInt(150)))
	require.Equal(t, uint64(350), bank.TokenBalanceOf(alice).Uint64())
	require.Equal(t, uint64(150), bank.TokenBalanceOf(exchange).Uint64())
	require.Equal(t, uint64(50), tok.Allowance(alice, exchange).Uint64())

	err := bank.TransferTokenFrom(exchange, alice, exchange, uint256.NewInt(51))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
	require.Equal(t, uint64(350), bank.TokenBalanceOf(alice).Uint64())
}

func TestTokenTransferInsufficientBalance(t *testing.T) {
	bank := newBank(t)
	bank.Token().Approve(alice, exchange, uint256.NewInt(10_000))

	err := bank.TransferTokenFrom(exchange, alice, exchange, uint256.NewInt(501))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint64(10_000), bank.Token().Allowance(alice, exchange).Uint64())

	err = bank.TransferToken(bob, alice, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTransferRejectsZeroReceiver(t *testing.T) {
	bank := newBank(t)
	require.ErrorIs(t, bank.TransferToken(alice, common.Address{}, uint256.NewInt(1)), ErrInvalidReceiver)
	require.ErrorIs(t, bank.TransferNative(alice, common.Address{}, uint256.NewInt(1)), ErrInvalidReceiver)
}

func TestNativeTransfer(t *testing.T) {
	bank := newBank(t)
	require.NoError(t, bank.TransferNative(alice, bob, uint256.NewInt(400)))
	require.Equal(t, uint64(600), bank.NativeBalanceOf(alice).Uint64())
	require.Equal(t, uint64(400), bank.NativeBalanceOf(bob).Uint64())

	err := bank.TransferNative(bob, alice, uint256.NewInt(401))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.True(t, bank.NativeBalanceOf(exchange).IsZero())
}

func TestRevertToSnapshotUndoesEveryTransferKind(t *testing.T) {
	bank := newBank(t)
	bank.Token().Approve(alice, exchange, uint256.NewInt(300))

	id := bank.Snapshot()
	require.NoError(t, bank.TransferNative(alice, exchange, uint256.NewInt(100)))
	require.NoError(t, bank.TransferTokenFrom(exchange, alice, exchange, uint256.NewInt(200)))
	require.NoError(t, bank.TransferToken(exchange, bob, uint256.NewInt(20)))
	require.NoError(t, bank.Fund(bob, uint256.NewInt(7)))
	bank.RevertToSnapshot(id)

	require.Equal(t, uint64(1000), bank.NativeBalanceOf(alice).Uint64())
	require.True(t, bank.NativeBalanceOf(exchange).IsZero())
	require.True(t, bank.NativeBalanceOf(bob).IsZero())
	require.Equal(t, uint64(500), bank.TokenBalanceOf(alice).Uint64())
	require.True(t, bank.TokenBalanceOf(exchange).IsZero())
	require.True(t, bank.TokenBalanceOf(bob).IsZero())
	require.Equal(t, uint64(300), bank.Token().Allowance(alice, exchange).Uint64())
}

func TestDiscardSnapshotKeepsChanges(t *testing.T) {
	bank := newBank(t)

	id := bank.Snapshot()
	require.NoError(t, bank.TransferNative(alice, bob, uint256.NewInt(10)))
	bank.DiscardSnapshot(id)
	require.Empty(t, bank.journal.entries)

	next := bank.Snapshot()
	require.Equal(t, 0, next)
	require.NoError(t, bank.TransferNative(alice, bob, uint256.NewInt(5)))
	bank.RevertToSnapshot(next)

	require.Equal(t, uint64(990), bank.NativeBalanceOf(alice).Uint64())
	require.Equal(t, uint64(10), bank.NativeBalanceOf(bob).Uint64())
}

func TestNestedSnapshots(t *testing.T) {
	bank := newBank(t)

	outer := bank.Snapshot()
	require.NoError(t, bank.TransferNative(alice, bob, uint256.NewInt(1)))
	inner := bank.Snapshot()
	require.NoError(t, bank.TransferNative(alice, bob, uint256.NewInt(2)))
	bank.RevertToSnapshot(inner)
	require.Equal(t, uint64(1), bank.NativeBalanceOf(bob).Uint64())

	bank.RevertToSnapshot(outer)
	require.True(t, bank.NativeBalanceOf(bob).IsZero())
	require.Equal(t, uint64(1000), bank.NativeBalanceOf(alice).Uint64())
}
