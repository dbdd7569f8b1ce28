// Package exchange implements a single constant-product pool between the
// native base asset and one token. The pool is also the ledger of its own
// shares.
package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"zuniswap/internal/asset"
	"zuniswap/internal/ledger"
	"zuniswap/internal/model"
)

const (
	DefaultName   = "Zuniswap-V1"
	DefaultSymbol = "ZUNI-V1"
)

// Config holds the deployment parameters of a pool.
type Config struct {
	Address common.Address
	Name    string
	Symbol  string
}

type Option func(*Pool)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// Pool holds the two reserves and the share ledger. Every exported method
// takes the pool lock for its whole duration.
type Pool struct {
	mu      sync.Mutex
	address common.Address
	token   common.Address
	gateway asset.Gateway
	shares  *ledger.Ledger

	baseReserve  *uint256.Int
	tokenReserve *uint256.Int

	seq    uint64
	events []model.PoolEvent

	logger *zap.Logger
	now    func() time.Time
}

// PoolSnapshot is a consistent copy of the pool's accounting state.
type PoolSnapshot struct {
	Address      common.Address
	Token        common.Address
	Name         string
	Symbol       string
	BaseReserve  *uint256.Int
	TokenReserve *uint256.Int
	TotalShares  *uint256.Int
	Seq          uint64
}

// Empty reports whether no shares are outstanding.
func (s PoolSnapshot) Empty() bool { return s.TotalShares.IsZero() }

func New(cfg Config, gateway asset.Gateway, opts ...Option) (*Pool, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("pool address: %w", ErrInvalidAddress)
	}
	token := gateway.TokenAddress()
	if token == (common.Address{}) {
		return nil, fmt.Errorf("token address: %w", ErrInvalidAddress)
	}
	if !gateway.NativeBalanceOf(cfg.Address).IsZero() || !gateway.TokenBalanceOf(cfg.Address).IsZero() {
		return nil, ErrPoolNotEmpty
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultSymbol
	}

	p := &Pool{
		address:      cfg.Address,
		token:        token,
		gateway:      gateway,
		shares:       ledger.New(cfg.Name, cfg.Symbol),
		baseReserve:  new(uint256.Int),
		tokenReserve: new(uint256.Int),
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("pool", p.address.Hex()))
	return p, nil
}

func (p *Pool) Address() common.Address      { return p.address }
func (p *Pool) TokenAddress() common.Address { return p.token }
func (p *Pool) Name() string                 { return p.shares.Name() }
func (p *Pool) Symbol() string               { return p.shares.Symbol() }

func (p *Pool) TotalSupply() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.TotalSupply()
}

func (p *Pool) BalanceOf(holder common.Address) *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.BalanceOf(holder)
}

// Holders lists every address that has ever held shares.
func (p *Pool) Holders() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.Holders()
}

// TransferShares moves pool shares between holders.
func (p *Pool) TransferShares(from, to common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.shares.Transfer(from, to, orZero(amount)); err != nil {
		return fmt.Errorf("transfer shares: %w", err)
	}
	return nil
}

func (p *Pool) Snapshot() PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pool) snapshotLocked() PoolSnapshot {
	return PoolSnapshot{
		Address:      p.address,
		Token:        p.token,
		Name:         p.shares.Name(),
		Symbol:       p.shares.Symbol(),
		BaseReserve:  p.baseReserve.Clone(),
		TokenReserve: p.tokenReserve.Clone(),
		TotalShares:  p.shares.TotalSupply(),
		Seq:          p.seq,
	}
}

// DrainEvents returns the events recorded since the last call.
func (p *Pool) DrainEvents() []model.PoolEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
