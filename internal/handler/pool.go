package handler

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"zuniswap/internal/chain"
	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/metrics"
	"zuniswap/internal/model"
	"zuniswap/internal/scenario"
	"zuniswap/internal/storage"
)

// Operation labels used for metrics and logs.
const (
	opAddLiquidity     = "add_liquidity"
	opRemoveLiquidity  = "remove_liquidity"
	opSwapBaseForToken = "swap_base_for_token"
	opSwapTokenForBase = "swap_token_for_base"
	opApprove          = "approve"
)

// PoolHandler exposes one pool of a scenario world. Mutations are serialized
// so that drained events reach the sink in commit order.
type PoolHandler struct {
	BaseHandler
	mu      sync.Mutex
	world   *scenario.World
	sink    storage.EventSink
	metrics *metrics.Metrics

	// events the sink has not accepted yet, oldest first
	pending []model.PoolEvent
}

// NewPoolHandler wires a world to an optional event sink and metrics set.
func NewPoolHandler(logger *zap.Logger, world *scenario.World, sink storage.EventSink, m *metrics.Metrics) *PoolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &PoolHandler{
		BaseHandler: BaseHandler{logger: logger},
		world:       world,
		sink:        sink,
		metrics:     m,
	}
	if m != nil {
		m.SetPool(world.Pool.Snapshot())
	}
	return h
}

// Register mounts the pool routes on r.
func (h *PoolHandler) Register(r fiber.Router) {
	r.Get("/pool", h.GetPool)
	r.Get("/quote/token", h.QuoteToken)
	r.Get("/quote/base", h.QuoteBase)
	r.Get("/shares/:address", h.GetShares)
	r.Post("/approve", h.Approve)
	r.Post("/liquidity/add", h.AddLiquidity)
	r.Post("/liquidity/remove", h.RemoveLiquidity)
	r.Post("/swap/base-for-token", h.SwapBaseForToken)
	r.Post("/swap/token-for-base", h.SwapTokenForBase)
}

type PoolResponse struct {
	Address      string  `json:"address"`
	Token        string  `json:"token"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	BaseReserve  string  `json:"base_reserve"`
	TokenReserve string  `json:"token_reserve"`
	TotalShares  string  `json:"total_shares"`
	Price        *string `json:"price,omitempty"`
	Seq          uint64  `json:"seq"`
}

type QuoteResponse struct {
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

type SharesResponse struct {
	Address string `json:"address"`
	Shares  string `json:"shares"`
	Native  string `json:"native"`
	Token   string `json:"token"`
}

type AddLiquidityRequest struct {
	Caller   string `json:"caller"`
	Base     string `json:"base"`
	MaxToken string `json:"max_token"`
}

type RemoveLiquidityRequest struct {
	Caller string `json:"caller"`
	Shares string `json:"shares"`
}

type SwapRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
	MinOut string `json:"min_out"`
}

type ApproveRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

// OperationResponse carries the result of a mutation and the pool after it.
type OperationResponse struct {
	Minted   string       `json:"minted,omitempty"`
	Out      string       `json:"out,omitempty"`
	BaseOut  string       `json:"base_out,omitempty"`
	TokenOut string       `json:"token_out,omitempty"`
	Pool     PoolResponse `json:"pool"`

	// EventsPending counts committed events the sink has not stored yet.
	EventsPending int `json:"events_pending,omitempty"`
}

func (h *PoolHandler) GetPool(c fiber.Ctx) error {
	return c.JSON(h.poolResponse())
}

func (h *PoolHandler) QuoteToken(c fiber.Ctx) error {
	in, err := requiredAmount("base_in", c.Query("base_in"))
	if err != nil {
		return err
	}
	out, err := h.world.Pool.GetTokenAmount(in)
	if err != nil {
		return operationError(err)
	}
	return c.JSON(QuoteResponse{AmountIn: fixedpoint.FormatUnits(in), AmountOut: fixedpoint.FormatUnits(out)})
}

func (h *PoolHandler) QuoteBase(c fiber.Ctx) error {
	in, err := requiredAmount("token_in", c.Query("token_in"))
	if err != nil {
		return err
	}
	out, err := h.world.Pool.GetEthAmount(in)
	if err != nil {
		return operationError(err)
	}
	return c.JSON(QuoteResponse{AmountIn: fixedpoint.FormatUnits(in), AmountOut: fixedpoint.FormatUnits(out)})
}

func (h *PoolHandler) GetShares(c fiber.Ctx) error {
	addr, err := h.resolve("holder", c.Params("address"))
	if err != nil {
		return err
	}
	return c.JSON(SharesResponse{
		Address: addr.Hex(),
		Shares:  fixedpoint.FormatUnits(h.world.Pool.BalanceOf(addr)),
		Native:  fixedpoint.FormatUnits(h.world.Bank.NativeBalanceOf(addr)),
		Token:   fixedpoint.FormatUnits(h.world.Bank.TokenBalanceOf(addr)),
	})
}

// Approve sets the owner's token allowance for the pool.
func (h *PoolHandler) Approve(c fiber.Ctx) error {
	var req ApproveRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	owner, err := h.resolve("owner", req.Owner)
	if err != nil {
		return err
	}
	amt, err := optionalAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.world.Bank.Token().Approve(owner, h.world.Pool.Address(), amt)
	h.mu.Unlock()
	h.logger.Debug("allowance set", zap.String("op", opApprove), zap.String("owner", owner.Hex()), zap.String("amount", fixedpoint.String(amt)))
	return c.JSON(fiber.Map{"owner": owner.Hex(), "allowance": fixedpoint.FormatUnits(amt)})
}

func (h *PoolHandler) AddLiquidity(c fiber.Ctx) error {
	var req AddLiquidityRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	caller, err := h.resolve("caller", req.Caller)
	if err != nil {
		return err
	}
	base, err := optionalAmount("base", req.Base)
	if err != nil {
		return err
	}
	maxToken, err := optionalAmount("max_token", req.MaxToken)
	if err != nil {
		return err
	}

	var resp OperationResponse
	resp.EventsPending, err = h.mutate(opAddLiquidity, func() error {
		minted, err := h.world.Pool.AddLiquidity(caller, maxToken, base)
		if err != nil {
			return err
		}
		resp.Minted = fixedpoint.FormatUnits(minted)
		return nil
	})
	if err != nil {
		return err
	}
	resp.Pool = h.poolResponse()
	return c.JSON(resp)
}

func (h *PoolHandler) RemoveLiquidity(c fiber.Ctx) error {
	var req RemoveLiquidityRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	caller, err := h.resolve("caller", req.Caller)
	if err != nil {
		return err
	}
	shares, err := optionalAmount("shares", req.Shares)
	if err != nil {
		return err
	}

	var resp OperationResponse
	resp.EventsPending, err = h.mutate(opRemoveLiquidity, func() error {
		baseOut, tokenOut, err := h.world.Pool.RemoveLiquidity(caller, shares)
		if err != nil {
			return err
		}
		resp.BaseOut = fixedpoint.FormatUnits(baseOut)
		resp.TokenOut = fixedpoint.FormatUnits(tokenOut)
		return nil
	})
	if err != nil {
		return err
	}
	resp.Pool = h.poolResponse()
	return c.JSON(resp)
}

func (h *PoolHandler) SwapBaseForToken(c fiber.Ctx) error {
	return h.swap(c, opSwapBaseForToken, func(caller common.Address, in, minOut *uint256.Int) (*uint256.Int, error) {
		return h.world.Pool.SwapBaseForToken(caller, minOut, in)
	})
}

func (h *PoolHandler) SwapTokenForBase(c fiber.Ctx) error {
	return h.swap(c, opSwapTokenForBase, func(caller common.Address, in, minOut *uint256.Int) (*uint256.Int, error) {
		return h.world.Pool.SwapTokenForBase(caller, in, minOut)
	})
}

func (h *PoolHandler) swap(c fiber.Ctx, op string, fn func(caller common.Address, in, minOut *uint256.Int) (*uint256.Int, error)) error {
	var req SwapRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	caller, err := h.resolve("caller", req.Caller)
	if err != nil {
		return err
	}
	in, err := optionalAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	minOut, err := optionalAmount("min_out", req.MinOut)
	if err != nil {
		return err
	}

	var resp OperationResponse
	resp.EventsPending, err = h.mutate(op, func() error {
		out, err := fn(caller, in, minOut)
		if err != nil {
			return err
		}
		resp.Out = fixedpoint.FormatUnits(out)
		return nil
	})
	if err != nil {
		return err
	}
	resp.Pool = h.poolResponse()
	return c.JSON(resp)
}

// mutate runs fn under the handler lock, forwards the events it produced
// and records metrics. A sink failure does not undo a committed operation:
// the events stay queued for the next call and their count is returned.
func (h *PoolHandler) mutate(op string, fn func() error) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	err := fn()
	if h.metrics != nil {
		h.metrics.ObserveOperation(op, err, time.Since(start))
	}
	if err != nil {
		h.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
		return len(h.pending), operationError(err)
	}

	h.pending = append(h.pending, h.world.Pool.DrainEvents()...)
	if h.sink != nil && len(h.pending) > 0 {
		if err := h.sink.PutEvents(h.pending); err != nil {
			h.logger.Error("write events failed",
				zap.String("op", op),
				zap.Int("pending", len(h.pending)),
				zap.Error(err),
			)
		} else {
			h.pending = nil
		}
	} else if h.sink == nil {
		h.pending = nil
	}
	if h.metrics != nil {
		h.metrics.SetPool(h.world.Pool.Snapshot())
	}
	return len(h.pending), nil
}

func (h *PoolHandler) poolResponse() PoolResponse {
	snap := h.world.Pool.Snapshot()
	resp := PoolResponse{
		Address:      snap.Address.Hex(),
		Token:        snap.Token.Hex(),
		Name:         snap.Name,
		Symbol:       snap.Symbol,
		BaseReserve:  fixedpoint.FormatUnits(snap.BaseReserve),
		TokenReserve: fixedpoint.FormatUnits(snap.TokenReserve),
		TotalShares:  fixedpoint.FormatUnits(snap.TotalShares),
		Seq:          snap.Seq,
	}
	if price, err := h.world.Pool.GetPrice(snap.BaseReserve, snap.TokenReserve); err == nil {
		p := fixedpoint.FormatUnits(price)
		resp.Price = &p
	}
	return resp
}

// resolve accepts a genesis account name or a hex address.
func (h *PoolHandler) resolve(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, fiber.NewError(fiber.StatusBadRequest, field+" is required")
	}
	if addr, ok := h.world.Accounts[value]; ok {
		return addr, nil
	}
	addr, err := chain.ParseAddress(value)
	if err != nil {
		return common.Address{}, NewInvalidAddress(field)
	}
	return addr, nil
}

func requiredAmount(field, value string) (*uint256.Int, error) {
	if value == "" {
		return nil, NewAmountRequired(field)
	}
	return optionalAmount(field, value)
}

func optionalAmount(field, value string) (*uint256.Int, error) {
	amt, err := fixedpoint.ParseUnits(value)
	if err != nil {
		return nil, NewInvalidAmount(field, err)
	}
	return amt, nil
}
