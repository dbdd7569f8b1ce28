// Package scenario loads YAML scenario files and replays them against an
// in-memory exchange pool.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpAddLiquidity     = "add_liquidity"
	OpRemoveLiquidity  = "remove_liquidity"
	OpSwapBaseForToken = "swap_base_for_token"
	OpSwapTokenForBase = "swap_token_for_base"
	OpApprove          = "approve"
	OpTransferShares   = "transfer_shares"
)

var ErrInvalidScenario = errors.New("invalid scenario")

type Scenario struct {
	Name        string             `yaml:"name"`
	Token       TokenSpec          `yaml:"token"`
	Pool        PoolSpec           `yaml:"pool"`
	Start       int64              `yaml:"start"`
	StepSeconds int64              `yaml:"step_seconds"`
	Accounts    map[string]Account `yaml:"accounts"`
	Steps       []Step             `yaml:"steps"`
}

type TokenSpec struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
	Symbol  string `yaml:"symbol"`
}

type PoolSpec struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
	Symbol  string `yaml:"symbol"`
}

// Account is funded at genesis. Amounts are decimal strings in whole units.
type Account struct {
	Address string `yaml:"address"`
	Native  string `yaml:"native"`
	Token   string `yaml:"token"`
	Approve string `yaml:"approve"`
}

// Step is one operation. Base, Token and Shares are the amounts sent or
// burned; for add_liquidity Token is the maximum token amount.
type Step struct {
	Op          string `yaml:"op"`
	Caller      string `yaml:"caller"`
	To          string `yaml:"to"`
	Base        string `yaml:"base"`
	Token       string `yaml:"token"`
	Shares      string `yaml:"shares"`
	MinOut      string `yaml:"min_out"`
	At          int64  `yaml:"at"`
	ExpectError string `yaml:"expect_error"`
	Expect      Expect `yaml:"expect"`
}

// Expect holds optional exact results, formatted like FormatUnits output.
type Expect struct {
	Out   string `yaml:"out"`
	Base  string `yaml:"base"`
	Token string `yaml:"token"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario and rejects unknown fields.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	if len(s.Accounts) == 0 {
		return fmt.Errorf("%w: no accounts", ErrInvalidScenario)
	}
	for i, step := range s.Steps {
		switch step.Op {
		case OpAddLiquidity, OpRemoveLiquidity, OpSwapBaseForToken, OpSwapTokenForBase, OpApprove:
		case OpTransferShares:
			if _, ok := s.Accounts[step.To]; !ok {
				return fmt.Errorf("%w: step %d: unknown recipient %q", ErrInvalidScenario, i, step.To)
			}
		default:
			return fmt.Errorf("%w: step %d: unknown op %q", ErrInvalidScenario, i, step.Op)
		}
		if _, ok := s.Accounts[step.Caller]; !ok {
			return fmt.Errorf("%w: step %d: unknown caller %q", ErrInvalidScenario, i, step.Caller)
		}
	}
	return nil
}
