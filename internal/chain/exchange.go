package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"zuniswap/internal/pricing"
)

// ExchangeState is a point-in-time read of a deployed exchange contract.
type ExchangeState struct {
	Address      common.Address
	Token        common.Address
	Name         string
	Symbol       string
	TokenSymbol  string
	BaseReserve  *uint256.Int
	TokenReserve *uint256.Int
	TotalSupply  *uint256.Int
	BlockNumber  uint64
}

// QuoteCheck compares a locally computed output with the contract's own.
type QuoteCheck struct {
	Method string
	Input  *uint256.Int
	Local  *uint256.Int
	Remote *uint256.Int
}

func (q QuoteCheck) Match() bool {
	return q.Local != nil && q.Remote != nil && q.Local.Eq(q.Remote)
}

// ReaderConfig controls RPC retries.
type ReaderConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// ExchangeReader reads exchange state over RPC.
type ExchangeReader struct {
	client *Client
	cfg    ReaderConfig
	logger *zap.Logger
}

func NewExchangeReader(client *Client, cfg ReaderConfig, logger *zap.Logger) *ExchangeReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExchangeReader{client: client, cfg: cfg, logger: logger}
}

// ReadExchange loads reserves, supply and metadata of the exchange at block.
// A nil block reads the latest state; the block number is then pinned so every
// call sees the same state.
func (r *ExchangeReader) ReadExchange(ctx context.Context, exchange common.Address, block *big.Int) (ExchangeState, error) {
	state := ExchangeState{Address: exchange}
	if r.client == nil {
		return state, fmt.Errorf("chain client is nil")
	}
	exABI, err := ExchangeABI()
	if err != nil {
		return state, fmt.Errorf("parse exchange abi: %w", err)
	}

	if block == nil {
		var latest uint64
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryDelay, func(ctx context.Context) error {
			var err error
			latest, err = r.client.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return state, fmt.Errorf("latest block: %w", err)
		}
		block = new(big.Int).SetUint64(latest)
	}
	state.BlockNumber = block.Uint64()

	values, err := r.call(ctx, exchange, exABI, "tokenAddress", block)
	if err != nil {
		return state, err
	}
	token, ok := values[0].(common.Address)
	if !ok {
		return state, fmt.Errorf("tokenAddress unexpected type %T", values[0])
	}
	state.Token = token

	if state.TokenReserve, err = r.callUint(ctx, exchange, exABI, "getReserve", block); err != nil {
		return state, err
	}
	if state.TotalSupply, err = r.callUint(ctx, exchange, exABI, "totalSupply", block); err != nil {
		return state, err
	}

	var balance *big.Int
	err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryDelay, func(ctx context.Context) error {
		var err error
		balance, err = r.client.BalanceAt(ctx, exchange, block)
		return err
	})
	if err != nil {
		return state, fmt.Errorf("native balance: %w", err)
	}
	base, overflow := uint256.FromBig(balance)
	if overflow {
		return state, fmt.Errorf("native balance overflow: %s", balance)
	}
	state.BaseReserve = base

	if values, err := r.call(ctx, exchange, exABI, "name", block); err == nil {
		state.Name, _ = values[0].(string)
	} else {
		r.logger.Debug("name call failed", zap.String("exchange", exchange.Hex()), zap.Error(err))
	}
	if values, err := r.call(ctx, exchange, exABI, "symbol", block); err == nil {
		state.Symbol, _ = values[0].(string)
	} else {
		r.logger.Debug("symbol call failed", zap.String("exchange", exchange.Hex()), zap.Error(err))
	}

	tokenABI, err := ERC20ABI()
	if err != nil {
		return state, fmt.Errorf("parse erc20 abi: %w", err)
	}
	if values, err := r.call(ctx, token, tokenABI, "symbol", block); err == nil {
		state.TokenSymbol, _ = values[0].(string)
	} else {
		r.logger.Debug("token symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return state, nil
}

// CheckQuotes computes getTokenAmount/getEthAmount locally from state and asks
// the contract for the same quotes. Zero inputs are skipped.
func (r *ExchangeReader) CheckQuotes(ctx context.Context, state ExchangeState, baseIn, tokenIn *uint256.Int) ([]QuoteCheck, error) {
	exABI, err := ExchangeABI()
	if err != nil {
		return nil, fmt.Errorf("parse exchange abi: %w", err)
	}
	block := new(big.Int).SetUint64(state.BlockNumber)

	var checks []QuoteCheck
	if baseIn != nil && !baseIn.IsZero() {
		local, err := pricing.OutputAmount(baseIn, state.BaseReserve, state.TokenReserve)
		if err != nil {
			return nil, fmt.Errorf("local getTokenAmount: %w", err)
		}
		remote, err := r.callUint(ctx, state.Address, exABI, "getTokenAmount", block, baseIn.ToBig())
		if err != nil {
			return nil, err
		}
		checks = append(checks, QuoteCheck{Method: "getTokenAmount", Input: baseIn, Local: local, Remote: remote})
	}
	if tokenIn != nil && !tokenIn.IsZero() {
		local, err := pricing.OutputAmount(tokenIn, state.TokenReserve, state.BaseReserve)
		if err != nil {
			return nil, fmt.Errorf("local getEthAmount: %w", err)
		}
		remote, err := r.callUint(ctx, state.Address, exABI, "getEthAmount", block, tokenIn.ToBig())
		if err != nil {
			return nil, err
		}
		checks = append(checks, QuoteCheck{Method: "getEthAmount", Input: tokenIn, Local: local, Remote: remote})
	}
	for _, c := range checks {
		if !c.Match() {
			r.logger.Warn("quote mismatch",
				zap.String("method", c.Method),
				zap.String("local", c.Local.ToBig().String()),
				zap.String("remote", c.Remote.ToBig().String()),
			)
		}
	}
	return checks, nil
}

func (r *ExchangeReader) callUint(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) (*uint256.Int, error) {
	values, err := r.call(ctx, to, parsed, method, block, args...)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s unexpected type %T", method, values[0])
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%s overflows uint256", method)
	}
	return out, nil
}

func (r *ExchangeReader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}

	var resp []byte
	err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryDelay, func(ctx context.Context) error {
		var err error
		resp, err = r.client.CallContract(ctx, msg, block)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}
