package aggregate

import (
	"fmt"
	"math/big"

	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/model"
	"zuniswap/internal/pricing"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress   string
	Token         string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	VolumeBase    *big.Int
	VolumeToken   *big.Int
	FeeBase       *big.Int
	FeeToken      *big.Int
	BaseReserve   *big.Int
	TokenReserve  *big.Int
	LastSeq       uint64
	LastTS        uint64
	FirstSeq      uint64
	FirstTS       uint64
}

func NewAccumulator(event model.PoolEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress:  event.Pool,
		Token:        event.Token,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeBase:   big.NewInt(0),
		VolumeToken:  big.NewInt(0),
		FeeBase:      big.NewInt(0),
		FeeToken:     big.NewInt(0),
		BaseReserve:  big.NewInt(0),
		TokenReserve: big.NewInt(0),
		FirstSeq:     event.Seq,
		FirstTS:      event.Timestamp,
	}
}

func (a *Accumulator) AddEvent(event model.PoolEvent) error {
	switch event.Kind {
	case model.EventAddLiquidity, model.EventRemoveLiquidity, model.EventSwapBaseForToken, model.EventSwapTokenForBase:
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}

	if event.Seq >= a.LastSeq {
		baseReserve, err := parseBigInt(event.BaseReserve)
		if err != nil {
			return err
		}
		tokenReserve, err := parseBigInt(event.TokenReserve)
		if err != nil {
			return err
		}
		a.BaseReserve = baseReserve
		a.TokenReserve = tokenReserve
		a.LastSeq = event.Seq
		a.LastTS = event.Timestamp
	}
	if a.FirstSeq == 0 || event.Seq < a.FirstSeq {
		a.FirstSeq = event.Seq
		a.FirstTS = event.Timestamp
	}

	switch event.Kind {
	case model.EventSwapBaseForToken:
		return a.applySwap(event.BaseIn, event.TokenOut, true)
	case model.EventSwapTokenForBase:
		return a.applySwap(event.TokenIn, event.BaseOut, false)
	case model.EventAddLiquidity:
		a.DepositCount++
	case model.EventRemoveLiquidity:
		a.WithdrawCount++
	}
	return nil
}

// applySwap adds both legs to the volumes and charges the fee on the input side.
func (a *Accumulator) applySwap(amountIn, amountOut string, baseIn bool) error {
	in, err := parseBigInt(amountIn)
	if err != nil {
		return err
	}
	out, err := parseBigInt(amountOut)
	if err != nil {
		return err
	}
	fee, err := feeFromAmount(amountIn)
	if err != nil {
		return err
	}

	if baseIn {
		a.VolumeBase.Add(a.VolumeBase, in)
		a.VolumeToken.Add(a.VolumeToken, out)
		a.FeeBase.Add(a.FeeBase, fee)
	} else {
		a.VolumeToken.Add(a.VolumeToken, in)
		a.VolumeBase.Add(a.VolumeBase, out)
		a.FeeToken.Add(a.FeeToken, fee)
	}
	a.SwapCount++
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}

func feeFromAmount(amountIn string) (*big.Int, error) {
	in, err := fixedpoint.ParseInteger(amountIn)
	if err != nil {
		return nil, err
	}
	fee, err := pricing.Fee(in)
	if err != nil {
		return nil, err
	}
	return fee.ToBig(), nil
}
