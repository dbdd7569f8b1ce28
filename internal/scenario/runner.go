package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"zuniswap/internal/exchange"
	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/storage"
)

// ErrExpectation reports a step whose outcome differs from what the
// scenario expects.
var ErrExpectation = errors.New("step expectation failed")

// Report is the outcome of a scenario run.
type Report struct {
	Name     string          `json:"name,omitempty"`
	Pool     PoolReport      `json:"pool"`
	Steps    []StepResult    `json:"steps"`
	Accounts []AccountReport `json:"accounts"`
	Events   int             `json:"events"`
}

type PoolReport struct {
	Address      string  `json:"address"`
	Token        string  `json:"token"`
	BaseReserve  string  `json:"base_reserve"`
	TokenReserve string  `json:"token_reserve"`
	TotalShares  string  `json:"total_shares"`
	Price        *string `json:"price,omitempty"`
}

type StepResult struct {
	Index    int    `json:"index"`
	Op       string `json:"op"`
	Caller   string `json:"caller"`
	Out      string `json:"out,omitempty"`
	BaseOut  string `json:"base_out,omitempty"`
	TokenOut string `json:"token_out,omitempty"`
	Error    string `json:"error,omitempty"`
}

type AccountReport struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Native  string `json:"native"`
	Token   string `json:"token"`
	Shares  string `json:"shares"`
}

// Runner replays scenario steps and forwards pool events to a sink.
type Runner struct {
	sink   storage.EventSink
	logger *zap.Logger
}

func NewRunner(sink storage.EventSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sink: sink, logger: logger}
}

// Run builds a fresh world for s and executes every step.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*World, *Report, error) {
	world, err := NewWorld(s, r.logger)
	if err != nil {
		return nil, nil, err
	}
	report, err := r.Apply(ctx, world, s)
	return world, report, err
}

// Apply executes the steps of s against an existing world. A step whose error
// does not match expect_error stops the run.
func (r *Runner) Apply(ctx context.Context, world *World, s *Scenario) (*Report, error) {
	report := &Report{Name: s.Name}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if step.At != 0 {
			world.Clock.Set(step.At)
		} else if i > 0 {
			world.Clock.Tick()
		}

		result, stepErr := r.execute(world, step)
		result.Index = i
		if stepErr != nil {
			result.Error = errorName(stepErr)
		}
		report.Steps = append(report.Steps, result)

		events := world.Pool.DrainEvents()
		report.Events += len(events)
		if r.sink != nil {
			if err := r.sink.PutEvents(events); err != nil {
				return report, fmt.Errorf("write events: %w", err)
			}
		}

		if err := checkStep(step, result, stepErr); err != nil {
			r.logger.Warn("scenario step failed",
				zap.Int("step", i),
				zap.String("op", step.Op),
				zap.String("caller", step.Caller),
				zap.Error(err),
			)
			return report, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		r.logger.Debug("scenario step",
			zap.Int("step", i),
			zap.String("op", step.Op),
			zap.String("caller", step.Caller),
			zap.String("error", result.Error),
		)
	}

	report.Pool = poolReport(world)
	report.Accounts = accountReports(world)
	return report, nil
}

func (r *Runner) execute(world *World, step Step) (StepResult, error) {
	res := StepResult{Op: step.Op, Caller: step.Caller}
	caller := world.Accounts[step.Caller]

	base, err := amount(step.Base)
	if err != nil {
		return res, fmt.Errorf("base: %w", err)
	}
	token, err := amount(step.Token)
	if err != nil {
		return res, fmt.Errorf("token: %w", err)
	}
	shares, err := amount(step.Shares)
	if err != nil {
		return res, fmt.Errorf("shares: %w", err)
	}
	minOut, err := amount(step.MinOut)
	if err != nil {
		return res, fmt.Errorf("min_out: %w", err)
	}

	switch step.Op {
	case OpAddLiquidity:
		minted, err := world.Pool.AddLiquidity(caller, token, base)
		if err != nil {
			return res, err
		}
		res.Out = fixedpoint.FormatUnits(minted)
	case OpRemoveLiquidity:
		baseOut, tokenOut, err := world.Pool.RemoveLiquidity(caller, shares)
		if err != nil {
			return res, err
		}
		res.BaseOut = fixedpoint.FormatUnits(baseOut)
		res.TokenOut = fixedpoint.FormatUnits(tokenOut)
	case OpSwapBaseForToken:
		out, err := world.Pool.SwapBaseForToken(caller, minOut, base)
		if err != nil {
			return res, err
		}
		res.Out = fixedpoint.FormatUnits(out)
	case OpSwapTokenForBase:
		out, err := world.Pool.SwapTokenForBase(caller, token, minOut)
		if err != nil {
			return res, err
		}
		res.Out = fixedpoint.FormatUnits(out)
	case OpApprove:
		world.Bank.Token().Approve(caller, world.Pool.Address(), token)
	case OpTransferShares:
		if err := world.Pool.TransferShares(caller, world.Accounts[step.To], shares); err != nil {
			return res, err
		}
	default:
		return res, fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, step.Op)
	}
	return res, nil
}

func checkStep(step Step, res StepResult, stepErr error) error {
	if step.ExpectError != "" {
		if stepErr == nil {
			return fmt.Errorf("%w: expected error %s, got success", ErrExpectation, step.ExpectError)
		}
		if got := errorName(stepErr); got != step.ExpectError {
			return fmt.Errorf("%w: expected error %s, got %s", ErrExpectation, step.ExpectError, got)
		}
		return nil
	}
	if stepErr != nil {
		return stepErr
	}

	checks := []struct{ field, want, got string }{
		{"out", step.Expect.Out, res.Out},
		{"base", step.Expect.Base, res.BaseOut},
		{"token", step.Expect.Token, res.TokenOut},
	}
	for _, c := range checks {
		if c.want == "" {
			continue
		}
		want, err := amount(c.want)
		if err != nil {
			return fmt.Errorf("expect %s: %w", c.field, err)
		}
		if c.got == "" || fixedpoint.FormatUnits(want) != c.got {
			return fmt.Errorf("%w: %s = %s, want %s", ErrExpectation, c.field, c.got, c.want)
		}
	}
	return nil
}

func errorName(err error) string {
	if code := exchange.ErrorCode(err); code != "" {
		return code
	}
	return err.Error()
}

func poolReport(world *World) PoolReport {
	snap := world.Pool.Snapshot()
	rep := PoolReport{
		Address:      snap.Address.Hex(),
		Token:        snap.Token.Hex(),
		BaseReserve:  fixedpoint.FormatUnits(snap.BaseReserve),
		TokenReserve: fixedpoint.FormatUnits(snap.TokenReserve),
		TotalShares:  fixedpoint.FormatUnits(snap.TotalShares),
	}
	if price, err := world.Pool.GetPrice(snap.BaseReserve, snap.TokenReserve); err == nil {
		p := fixedpoint.FormatUnits(price)
		rep.Price = &p
	}
	return rep
}

func accountReports(world *World) []AccountReport {
	names := make([]string, 0, len(world.Accounts))
	for name := range world.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]AccountReport, 0, len(names))
	for _, name := range names {
		addr := world.Accounts[name]
		out = append(out, AccountReport{
			Name:    name,
			Address: addr.Hex(),
			Native:  fixedpoint.FormatUnits(world.Bank.NativeBalanceOf(addr)),
			Token:   fixedpoint.FormatUnits(world.Bank.TokenBalanceOf(addr)),
			Shares:  fixedpoint.FormatUnits(world.Pool.BalanceOf(addr)),
		})
	}
	return out
}
