package exchange

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"zuniswap/internal/asset"
	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/model"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000e8c00")
	tokenAt  = common.HexToAddress("0x0000000000000000000000000000000000007e57")
)

func units(v string) *uint256.Int { return fixedpoint.MustParse(v) }

type fixture struct {
	pool *Pool
	bank *asset.Bank
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := asset.NewBank(asset.NewToken(tokenAt, "Token", "TKN"))
	for _, acct := range []common.Address{owner, user} {
		require.NoError(t, bank.Fund(acct, units("10000")))
		require.NoError(t, bank.Token().Mint(acct, units("10000")))
		bank.Token().Approve(acct, poolAddr, units("10000"))
	}
	clock := time.Unix(1700000000, 0)
	pool, err := New(Config{Address: poolAddr}, bank, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	return &fixture{pool: pool, bank: bank}
}

// seeded returns a fixture where owner provided base/token as the first deposit.
func seeded(t *testing.T, base, token string) *fixture {
	t.Helper()
	f := newFixture(t)
	_, err := f.pool.AddLiquidity(owner, units(token), units(base))
	require.NoError(t, err)
	return f
}

func (f *fixture) requireState(t *testing.T, base, token, shares string) {
	t.Helper()
	snap := f.pool.Snapshot()
	require.Equal(t, base, fixedpoint.FormatUnits(snap.BaseReserve), "base reserve")
	require.Equal(t, token, fixedpoint.FormatUnits(snap.TokenReserve), "token reserve")
	require.Equal(t, shares, fixedpoint.FormatUnits(snap.TotalShares), "total shares")
	require.NoError(t, f.pool.CheckInvariants())
}

func TestNewPoolDefaults(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, "Zuniswap-V1", f.pool.Name())
	require.Equal(t, "ZUNI-V1", f.pool.Symbol())
	require.Equal(t, tokenAt, f.pool.TokenAddress())
	require.True(t, f.pool.Snapshot().Empty())
}

func TestNewPoolRejectsFundedAddress(t *testing.T) {
	bank := asset.NewBank(asset.NewToken(tokenAt, "Token", "TKN"))
	require.NoError(t, bank.Fund(poolAddr, units("1")))
	_, err := New(Config{Address: poolAddr}, bank)
	require.ErrorIs(t, err, ErrPoolNotEmpty)

	_, err = New(Config{}, bank)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddLiquidityFirstDeposit(t *testing.T) {
	f := newFixture(t)
	shares, err := f.pool.AddLiquidity(owner, units("2000"), units("1000"))
	require.NoError(t, err)
	require.Equal(t, "1000.0", fixedpoint.FormatUnits(shares))

	f.requireState(t, "1000.0", "2000.0", "1000.0")
	require.Equal(t, "1000.0", fixedpoint.FormatUnits(f.pool.BalanceOf(owner)))
	require.Equal(t, "1000.0", fixedpoint.FormatUnits(f.bank.NativeBalanceOf(poolAddr)))
	require.Equal(t, "2000.0", fixedpoint.FormatUnits(f.pool.GetReserve()))
	require.Equal(t, "9000.0", fixedpoint.FormatUnits(f.bank.NativeBalanceOf(owner)))
	require.Equal(t, "8000.0", fixedpoint.FormatUnits(f.bank.TokenBalanceOf(owner)))
}

func TestAddLiquidityPreservesRatio(t *testing.T) {
	f := seeded(t, "100", "200")

	shares, err := f.pool.AddLiquidity(owner, units("200"), units("50"))
	require.NoError(t, err)
	require.Equal(t, "50.0", fixedpoint.FormatUnits(shares))
	f.requireState(t, "150.0", "300.0", "150.0")

	_, err = f.pool.AddLiquidity(owner, units("50"), units("50"))
	require.ErrorIs(t, err, ErrInsufficientTokenAmount)
	f.requireState(t, "150.0", "300.0", "150.0")
	require.Equal(t, "9850.0", fixedpoint.FormatUnits(f.bank.NativeBalanceOf(owner)))
}

func TestAddLiquidityPreservesRatioAfterSwaps(t *testing.T) {
	f := seeded(t, "1000", "2000")

	steps := []struct {
		swapBase  string
		swapToken string
		deposit   string
	}{
		{swapBase: "37", deposit: "1"},
		{swapToken: "11.1", deposit: "0.333333333333333333"},
		{swapBase: "0.7", deposit: "12.5"},
		{swapToken: "250", deposit: "0.000000000000000007"},
		{swapBase: "3", deposit: "250"},
	}
	for i, step := range steps {
		if step.swapBase != "" {
			_, err := f.pool.SwapBaseForToken(user, units("0"), units(step.swapBase))
			require.NoError(t, err)
		} else {
			_, err := f.pool.SwapTokenForBase(user, units(step.swapToken), units("0"))
			require.NoError(t, err)
		}

		before := f.pool.Snapshot()
		_, err := f.pool.AddLiquidity(owner, units("1000"), units(step.deposit))
		require.NoError(t, err, "deposit %d", i)
		after := f.pool.Snapshot()

		// token/base after equals token/base before up to one unit of
		// truncation: 0 <= Tb*Ba - Ta*Bb < Bb
		lhs := new(uint256.Int).Mul(before.TokenReserve, after.BaseReserve)
		rhs := new(uint256.Int).Mul(after.TokenReserve, before.BaseReserve)
		require.False(t, lhs.Lt(rhs), "token ratio rose after deposit %d", i)
		diff := new(uint256.Int).Sub(lhs, rhs)
		require.True(t, diff.Lt(before.BaseReserve), "ratio drifted by more than one unit after deposit %d", i)
		require.NoError(t, f.pool.CheckInvariants())
	}
}

func TestAddLiquidityRejectsOneSidedInitialDeposit(t *testing.T) {
	f := newFixture(t)
	_, err := f.pool.AddLiquidity(owner, units("0"), units("10"))
	require.ErrorIs(t, err, ErrUnbalancedDeposit)
	_, err = f.pool.AddLiquidity(owner, units("10"), units("0"))
	require.ErrorIs(t, err, ErrUnbalancedDeposit)
	f.requireState(t, "0.0", "0.0", "0.0")
}

func TestRemoveSomeLiquidity(t *testing.T) {
	f := seeded(t, "100", "200")

	baseOut, tokenOut, err := f.pool.RemoveLiquidity(owner, units("25"))
	require.NoError(t, err)
	require.Equal(t, "25.0", fixedpoint.FormatUnits(baseOut))
	require.Equal(t, "50.0", fixedpoint.FormatUnits(tokenOut))
	f.requireState(t, "75.0", "150.0", "75.0")
	require.Equal(t, "9925.0", fixedpoint.FormatUnits(f.bank.NativeBalanceOf(owner)))
	require.Equal(t, "9850.0", fixedpoint.FormatUnits(f.bank.TokenBalanceOf(owner)))
}

func TestRemoveAllLiquidityEmptiesPool(t *testing.T) {
	f := seeded(t, "100", "200")

	baseOut, tokenOut, err := f.pool.RemoveLiquidity(owner, units("100"))
	require.NoError(t, err)
	require.Equal(t, "100.0", fixedpoint.FormatUnits(baseOut))
	require.Equal(t, "200.0", fixedpoint.FormatUnits(tokenOut))
	f.requireState(t, "0.0", "0.0", "0.0")
	require.True(t, f.pool.Snapshot().Empty())

	_, err = f.pool.SwapBaseForToken(user, units("0"), units("1"))
	require.ErrorIs(t, err, ErrEmptyReserves)

	// Empty -> Active again.
	_, err = f.pool.AddLiquidity(user, units("30"), units("10"))
	require.NoError(t, err)
	f.requireState(t, "10.0", "30.0", "10.0")
}

func TestRemoveLiquidityInsufficientShares(t *testing.T) {
	f := seeded(t, "100", "200")

	_, _, err := f.pool.RemoveLiquidity(owner, units("100.1"))
	require.ErrorIs(t, err, ErrInsufficientShareBalance)
	f.requireState(t, "100.0", "200.0", "100.0")

	_, _, err = f.pool.RemoveLiquidity(user, units("1"))
	require.ErrorIs(t, err, ErrInsufficientShareBalance)
}

func TestProvidersEarnFees(t *testing.T) {
	f := seeded(t, "100", "200")

	out, err := f.pool.SwapBaseForToken(user, units("18"), units("10"))
	require.NoError(t, err)
	require.Equal(t, "18.01637852593266606", fixedpoint.FormatUnits(out))

	baseOut, tokenOut, err := f.pool.RemoveLiquidity(owner, units("100"))
	require.NoError(t, err)
	require.Equal(t, "110.0", fixedpoint.FormatUnits(baseOut))
	require.Equal(t, "181.98362147406733394", fixedpoint.FormatUnits(tokenOut))
	f.requireState(t, "0.0", "0.0", "0.0")
}

func TestSwapBaseForToken(t *testing.T) {
	f := seeded(t, "1000", "2000")

	quote, err := f.pool.GetTokenAmount(units("1"))
	require.NoError(t, err)
	require.Equal(t, "1.978041738678708079", fixedpoint.FormatUnits(quote))

	out, err := f.pool.SwapBaseForToken(user, units("1.97"), units("1"))
	require.NoError(t, err)
	require.Equal(t, quote, out)
	f.requireState(t, "1001.0", "1998.021958261321291921", "1000.0")
	require.Equal(t, "10001.978041738678708079", fixedpoint.FormatUnits(f.bank.TokenBalanceOf(user)))
	require.Equal(t, "9999.0", fixedpoint.FormatUnits(f.bank.NativeBalanceOf(user)))
}

func TestSwapBaseForTokenSlippage(t *testing.T) {
	f := seeded(t, "1000", "2000")

	_, err := f.pool.SwapBaseForToken(user, units("2"), units("1"))
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)
	f.requireState(t, "1000.0", "2000.0", "1000.0")
	require.Equal(t, "10000.0", fixedpoint.FormatUnits(f.bank.NativeBalanceOf(user)))
}

func TestExchangeRateMovesAfterSwap(t *testing.T) {
	f := seeded(t, "1000", "2000")

	quote, err := f.pool.GetTokenAmount(units("10"))
	require.NoError(t, err)
	require.Equal(t, "19.605901574413308248", fixedpoint.FormatUnits(quote))

	_, err = f.pool.SwapBaseForToken(user, units("9"), units("10"))
	require.NoError(t, err)

	quote, err = f.pool.GetTokenAmount(units("10"))
	require.NoError(t, err)
	require.Equal(t, "19.223356774598792281", fixedpoint.FormatUnits(quote))
}

func TestSwapTokenForBase(t *testing.T) {
	f := seeded(t, "1000", "2000")

	_, err := f.pool.SwapTokenForBase(user, units("2"), units("1.0"))
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)
	f.requireState(t, "1000.0", "2000.0", "1000.0")
	require.Equal(t, "10000.0", fixedpoint.FormatUnits(f.bank.TokenBalanceOf(user)))

	out, err := f.pool.SwapTokenForBase(user, units("2"), units("0.9"))
	require.NoError(t, err)
	require.Equal(t, "0.989020869339354039", fixedpoint.FormatUnits(out))
	require.Equal(t, "2002.0", fixedpoint.FormatUnits(f.pool.GetReserve()))
	require.NoError(t, f.pool.CheckInvariants())
}

func TestEthAmountMovesAfterSwap(t *testing.T) {
	f := seeded(t, "1000", "2000")

	quote, err := f.pool.GetEthAmount(units("20"))
	require.NoError(t, err)
	require.Equal(t, "9.802950787206654124", fixedpoint.FormatUnits(quote))

	_, err = f.pool.SwapTokenForBase(user, units("20"), units("9"))
	require.NoError(t, err)

	quote, err = f.pool.GetEthAmount(units("20"))
	require.NoError(t, err)
	require.Equal(t, "9.61167838729939614", fixedpoint.FormatUnits(quote))
}

func TestZeroAmountOperationsAreNoOps(t *testing.T) {
	f := newFixture(t)

	shares, err := f.pool.AddLiquidity(owner, units("0"), units("0"))
	require.NoError(t, err)
	require.True(t, shares.IsZero())
	_, _, err = f.pool.RemoveLiquidity(owner, units("0"))
	require.NoError(t, err)
	f.requireState(t, "0.0", "0.0", "0.0")

	f = seeded(t, "1000", "2000")
	_, err = f.pool.AddLiquidity(owner, units("0"), units("0"))
	require.NoError(t, err)
	_, _, err = f.pool.RemoveLiquidity(owner, units("0"))
	require.NoError(t, err)
	out, err := f.pool.SwapBaseForToken(user, units("0"), units("0"))
	require.NoError(t, err)
	require.True(t, out.IsZero())
	out, err = f.pool.SwapTokenForBase(user, units("0"), units("0"))
	require.NoError(t, err)
	require.True(t, out.IsZero())

	f.requireState(t, "1000.0", "2000.0", "1000.0")
	require.Len(t, f.pool.DrainEvents(), 1)
}

func TestQuotesFailOnEmptyPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.pool.GetTokenAmount(units("1"))
	require.ErrorIs(t, err, ErrEmptyReserves)
	_, err = f.pool.GetEthAmount(units("1"))
	require.ErrorIs(t, err, ErrEmptyReserves)
	_, err = f.pool.SwapTokenForBase(user, units("1"), units("0"))
	require.ErrorIs(t, err, ErrEmptyReserves)
	require.True(t, f.pool.GetReserve().IsZero())
}

func TestGetPrice(t *testing.T) {
	f := newFixture(t)
	price, err := f.pool.GetPrice(units("1000"), units("2000"))
	require.NoError(t, err)
	require.Equal(t, "2.0", fixedpoint.FormatUnits(price))

	_, err = f.pool.GetPrice(units("0"), units("2000"))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestGatewayFailureRollsBack(t *testing.T) {
	f := seeded(t, "1000", "2000")
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	require.NoError(t, f.bank.Fund(stranger, units("100")))
	require.NoError(t, f.bank.Token().Mint(stranger, units("100")))

	// The native leg settles before the missing allowance is hit.
	_, err := f.pool.AddLiquidity(stranger, units("100"), units("10"))
	require.ErrorIs(t, err, asset.ErrInsufficientAllowance)
	require.Equal(t, "100.0", fixedpoint.FormatUnits(f.bank.NativeBalanceOf(stranger)))
	require.True(t, f.pool.BalanceOf(stranger).IsZero())
	f.requireState(t, "1000.0", "2000.0", "1000.0")

	_, err = f.pool.SwapBaseForToken(stranger, units("0"), units("101"))
	require.ErrorIs(t, err, asset.ErrInsufficientBalance)
	f.requireState(t, "1000.0", "2000.0", "1000.0")
	require.Len(t, f.pool.DrainEvents(), 1)
}

// leakyGateway under-reports the pool's token balance by leak.
type leakyGateway struct {
	*asset.Bank
	leak *uint256.Int
}

func (g *leakyGateway) TokenBalanceOf(addr common.Address) *uint256.Int {
	held := g.Bank.TokenBalanceOf(addr)
	if addr != poolAddr || held.Lt(g.leak) {
		return held
	}
	return held.Sub(held, g.leak)
}

func TestDirectTransferJoinsReserves(t *testing.T) {
	f := seeded(t, "100", "200")
	require.NoError(t, f.bank.TransferToken(user, poolAddr, uint256.NewInt(1)))
	require.NoError(t, f.pool.CheckInvariants())
	require.Equal(t, "200.0", fixedpoint.FormatUnits(f.pool.GetReserve()))

	baseOut, tokenOut, err := f.pool.RemoveLiquidity(owner, units("100"))
	require.NoError(t, err)
	require.Equal(t, "100.0", fixedpoint.FormatUnits(baseOut))
	require.Equal(t, "200.000000000000000001", fixedpoint.FormatUnits(tokenOut))
	f.requireState(t, "0.0", "0.0", "0.0")
	require.True(t, f.bank.TokenBalanceOf(poolAddr).IsZero())
	require.True(t, f.bank.NativeBalanceOf(poolAddr).IsZero())
}

func TestDirectTransferPricesNextSwap(t *testing.T) {
	f := seeded(t, "1000", "2000")
	require.NoError(t, f.bank.TransferToken(user, poolAddr, units("2000")))

	out, err := f.pool.SwapBaseForToken(user, units("0"), units("1"))
	require.NoError(t, err)
	require.Equal(t, "3.956083477357416158", fixedpoint.FormatUnits(out))
	f.requireState(t, "1001.0", "3996.043916522642583842", "1000.0")

	events := f.pool.DrainEvents()
	require.Len(t, events, 2)
	require.Equal(t, "3996043916522642583842", events[1].TokenReserve)
}

func TestRejectedOperationLeavesSurplusPending(t *testing.T) {
	f := seeded(t, "1000", "2000")
	require.NoError(t, f.bank.TransferToken(user, poolAddr, units("1")))
	f.pool.DrainEvents()

	_, err := f.pool.SwapBaseForToken(user, units("5"), units("1"))
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)
	_, err = f.pool.SwapBaseForToken(user, units("0"), units("0"))
	require.NoError(t, err)
	_, _, err = f.pool.RemoveLiquidity(owner, units("0"))
	require.NoError(t, err)

	require.Equal(t, "2000.0", fixedpoint.FormatUnits(f.pool.GetReserve()))
	require.Empty(t, f.pool.DrainEvents())
}

func TestSurplusOnEmptyPoolJoinsFirstDeposit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bank.TransferToken(user, poolAddr, units("5")))
	require.NoError(t, f.bank.TransferNative(user, poolAddr, units("1")))
	require.NoError(t, f.pool.CheckInvariants())

	shares, err := f.pool.AddLiquidity(owner, units("200"), units("100"))
	require.NoError(t, err)
	require.Equal(t, "100.0", fixedpoint.FormatUnits(shares))
	f.requireState(t, "101.0", "205.0", "100.0")

	baseOut, tokenOut, err := f.pool.RemoveLiquidity(owner, units("100"))
	require.NoError(t, err)
	require.Equal(t, "101.0", fixedpoint.FormatUnits(baseOut))
	require.Equal(t, "205.0", fixedpoint.FormatUnits(tokenOut))
	f.requireState(t, "0.0", "0.0", "0.0")
}

func TestReserveShortfallRollsBack(t *testing.T) {
	bank := asset.NewBank(asset.NewToken(tokenAt, "Token", "TKN"))
	for _, acct := range []common.Address{owner, user} {
		require.NoError(t, bank.Fund(acct, units("10000")))
		require.NoError(t, bank.Token().Mint(acct, units("10000")))
		bank.Token().Approve(acct, poolAddr, units("10000"))
	}
	gw := &leakyGateway{Bank: bank, leak: new(uint256.Int)}
	pool, err := New(Config{Address: poolAddr}, gw)
	require.NoError(t, err)
	_, err = pool.AddLiquidity(owner, units("2000"), units("1000"))
	require.NoError(t, err)

	gw.leak = uint256.NewInt(1)
	require.ErrorIs(t, pool.CheckInvariants(), ErrReserveMismatch)

	_, err = pool.SwapBaseForToken(user, units("0"), units("1"))
	require.ErrorIs(t, err, ErrReserveMismatch)
	_, _, err = pool.RemoveLiquidity(owner, units("1000"))
	require.ErrorIs(t, err, ErrReserveMismatch)
	require.Equal(t, "10000.0", fixedpoint.FormatUnits(bank.NativeBalanceOf(user)))
	require.Equal(t, "1000.0", fixedpoint.FormatUnits(pool.GetBaseReserve()))
	require.Equal(t, "1000.0", fixedpoint.FormatUnits(pool.TotalSupply()))
}

func TestTransferShares(t *testing.T) {
	f := seeded(t, "100", "200")
	require.NoError(t, f.pool.TransferShares(owner, user, units("40")))

	baseOut, tokenOut, err := f.pool.RemoveLiquidity(user, units("40"))
	require.NoError(t, err)
	require.Equal(t, "40.0", fixedpoint.FormatUnits(baseOut))
	require.Equal(t, "80.0", fixedpoint.FormatUnits(tokenOut))
	require.ErrorIs(t, f.pool.TransferShares(user, owner, units("1")), ErrInsufficientShareBalance)
	require.ElementsMatch(t, []common.Address{owner, user}, f.pool.Holders())
}

func TestConstantProductNeverDecreases(t *testing.T) {
	f := seeded(t, "1000", "2000")
	product := func() *uint256.Int {
		s := f.pool.Snapshot()
		return new(uint256.Int).Mul(s.BaseReserve, s.TokenReserve)
	}

	prev := product()
	for i, amount := range []string{"1", "0.5", "37", "0.000000000000000001", "250"} {
		if i%2 == 0 {
			_, err := f.pool.SwapBaseForToken(user, units("0"), units(amount))
			require.NoError(t, err)
		} else {
			_, err := f.pool.SwapTokenForBase(user, units(amount), units("0"))
			require.NoError(t, err)
		}
		next := product()
		require.False(t, next.Lt(prev), "product decreased after swap %d", i)
		prev = next
	}
}

func TestEventsRecordCommittedOperations(t *testing.T) {
	f := seeded(t, "1000", "2000")
	_, err := f.pool.SwapBaseForToken(user, units("1.97"), units("1"))
	require.NoError(t, err)
	_, err = f.pool.SwapBaseForToken(user, units("2"), units("1"))
	require.Error(t, err)

	events := f.pool.DrainEvents()
	require.Len(t, events, 2)
	require.Equal(t, model.EventAddLiquidity, events[0].Kind)
	require.Equal(t, uint64(1), events[0].Seq)
	require.Equal(t, "1000000000000000000000", events[0].Shares)

	swap := events[1]
	require.Equal(t, model.EventSwapBaseForToken, swap.Kind)
	require.Equal(t, uint64(2), swap.Seq)
	require.Equal(t, user.Hex(), swap.Actor)
	require.Equal(t, "1000000000000000000", swap.BaseIn)
	require.Equal(t, "1978041738678708079", swap.TokenOut)
	require.Equal(t, "1998021958261321291921", swap.TokenReserve)
	require.Equal(t, uint64(1700000000), swap.Timestamp)
	require.Empty(t, f.pool.DrainEvents())
}

func TestConcurrentSwapsKeepInvariants(t *testing.T) {
	f := seeded(t, "1000", "2000")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if (i+j)%2 == 0 {
					_, _ = f.pool.SwapBaseForToken(user, units("0"), units("0.1"))
				} else {
					_, _ = f.pool.SwapTokenForBase(owner, units("0.2"), units("0"))
				}
				_, _ = f.pool.GetTokenAmount(units("1"))
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, f.pool.CheckInvariants())
	require.Len(t, f.pool.DrainEvents(), 201)
}

func TestErrorCode(t *testing.T) {
	f := seeded(t, "1000", "2000")
	_, err := f.pool.SwapBaseForToken(user, units("2"), units("1"))
	require.Equal(t, "insufficient_output_amount", ErrorCode(err))

	_, err = f.pool.SwapBaseForToken(user, units("0"), units("20000"))
	require.Equal(t, "insufficient_balance", ErrorCode(err))

	require.Equal(t, "", ErrorCode(nil))
	require.Equal(t, "", ErrorCode(errors.New("other")))
}
