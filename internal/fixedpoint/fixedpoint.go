// Package fixedpoint converts between human-readable decimal amounts and the
// 18-decimal scaled integers used for every reserve, swap amount and share balance.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the implicit decimal factor shared by both reserves and pool shares.
const Decimals = 18

// Scale is 10^Decimals, one whole unit.
var Scale = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrTooPrecise     = errors.New("amount has more than 18 fractional digits")
	ErrAmountOverflow = errors.New("amount does not fit in 256 bits")
)

// ParseUnits converts a decimal string such as "1.97" into its scaled integer.
func ParseUnits(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", value, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("parse amount %q: %w", value, ErrNegativeAmount)
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("parse amount %q: %w", value, ErrTooPrecise)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("parse amount %q: %w", value, ErrAmountOverflow)
	}
	return out, nil
}

// MustParse is ParseUnits for literals known to be valid.
func MustParse(value string) *uint256.Int {
	out, err := ParseUnits(value)
	if err != nil {
		panic(err)
	}
	return out
}

// ParseInteger parses a raw base-10 integer that is already scaled.
func ParseInteger(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("parse int %q: %w", value, ErrNegativeAmount)
	}
	out, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("parse int %q: %w", value, ErrAmountOverflow)
	}
	return out, nil
}

// FormatUnits renders a scaled integer the way wallets do: trailing zeros are
// trimmed but one fractional digit is always kept ("1001.0", "0.0").
func FormatUnits(value *uint256.Int) string {
	if value == nil {
		return "0.0"
	}
	rat := new(big.Rat).SetFrac(value.ToBig(), Scale.ToBig())
	text := rat.FloatString(Decimals)
	text = strings.TrimRight(text, "0")
	if strings.HasSuffix(text, ".") {
		text += "0"
	}
	return text
}

// String returns the raw base-10 integer form used in JSON records and SQL.
func String(value *uint256.Int) string {
	if value == nil {
		return "0"
	}
	return value.ToBig().String()
}
