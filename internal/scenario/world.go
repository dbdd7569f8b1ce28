package scenario

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"zuniswap/internal/asset"
	"zuniswap/internal/chain"
	"zuniswap/internal/exchange"
	"zuniswap/internal/fixedpoint"
)

const defaultStepSeconds = 12

// World is the in-memory state a scenario runs against.
type World struct {
	Bank     *asset.Bank
	Pool     *exchange.Pool
	Accounts map[string]common.Address
	Clock    *Clock
}

// Clock is a settable time source for pool events.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to unix seconds ts.
func (c *Clock) Set(ts int64) {
	c.mu.Lock()
	c.now = time.Unix(ts, 0).UTC()
	c.mu.Unlock()
}

// Tick advances the clock by one step.
func (c *Clock) Tick() {
	c.mu.Lock()
	c.now = c.now.Add(c.step)
	c.mu.Unlock()
}

// NewWorld builds the bank, funds every account and deploys the pool.
func NewWorld(s *Scenario, logger *zap.Logger) (*World, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokenAddr, err := addressOr(s.Token.Address, "token")
	if err != nil {
		return nil, err
	}
	poolAddr, err := addressOr(s.Pool.Address, "pool")
	if err != nil {
		return nil, err
	}

	name, symbol := s.Token.Name, s.Token.Symbol
	if name == "" {
		name = "Token"
	}
	if symbol == "" {
		symbol = "TKN"
	}
	bank := asset.NewBank(asset.NewToken(tokenAddr, name, symbol))

	start := s.Start
	if start == 0 {
		start = time.Now().Unix()
	}
	step := s.StepSeconds
	if step <= 0 {
		step = defaultStepSeconds
	}
	clock := &Clock{step: time.Duration(step) * time.Second}
	clock.Set(start)

	accounts := make(map[string]common.Address, len(s.Accounts))
	for _, acctName := range sortedNames(s.Accounts) {
		acct := s.Accounts[acctName]
		addr, err := addressOr(acct.Address, acctName)
		if err != nil {
			return nil, err
		}
		if addr == poolAddr {
			return nil, fmt.Errorf("%w: account %q uses the pool address", ErrInvalidScenario, acctName)
		}
		accounts[acctName] = addr

		native, err := amount(acct.Native)
		if err != nil {
			return nil, fmt.Errorf("account %s native: %w", acctName, err)
		}
		if err := bank.Fund(addr, native); err != nil {
			return nil, fmt.Errorf("fund %s: %w", acctName, err)
		}
		tokens, err := amount(acct.Token)
		if err != nil {
			return nil, fmt.Errorf("account %s token: %w", acctName, err)
		}
		if err := bank.Token().Mint(addr, tokens); err != nil {
			return nil, fmt.Errorf("mint %s: %w", acctName, err)
		}
		allowance, err := amount(acct.Approve)
		if err != nil {
			return nil, fmt.Errorf("account %s approve: %w", acctName, err)
		}
		bank.Token().Approve(addr, poolAddr, allowance)
	}

	pool, err := exchange.New(
		exchange.Config{Address: poolAddr, Name: s.Pool.Name, Symbol: s.Pool.Symbol},
		bank,
		exchange.WithLogger(logger),
		exchange.WithClock(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("deploy pool: %w", err)
	}

	return &World{Bank: bank, Pool: pool, Accounts: accounts, Clock: clock}, nil
}

// addressOr parses value, or derives a stable address from label when empty.
func addressOr(value, label string) (common.Address, error) {
	if value == "" {
		return common.BytesToAddress(crypto.Keccak256([]byte(label))), nil
	}
	addr, err := chain.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %v", ErrInvalidScenario, label, err)
	}
	return addr, nil
}

func amount(value string) (*uint256.Int, error) {
	return fixedpoint.ParseUnits(value)
}

func sortedNames(accounts map[string]Account) []string {
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
