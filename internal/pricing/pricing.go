// Package pricing holds the constant-product curve used by the exchange pool.
// Every function is pure and works on 18-decimal scaled integers with floor
// division, so quotes and settlement are bit-identical.
package pricing

import (
	"github.com/holiman/uint256"

	"zuniswap/internal/fixedpoint"
)

// fee: 1% => effective input is 99/100 of the amount sent
var (
	feeMul = uint256.NewInt(99)
	feeDen = uint256.NewInt(100)
)

// SpotPrice returns reserveB/reserveA as an 18-decimal fixed-point value.
func SpotPrice(reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if reserveA.IsZero() {
		return nil, ErrDivisionByZero
	}
	num, err := Mul(reserveB, fixedpoint.Scale)
	if err != nil {
		return nil, err
	}
	return num.Div(num, reserveA), nil
}

// OutputAmount returns how much of the output asset inputAmount buys after the
// protocol fee:
//
//	effectiveInput = inputAmount * 99
//	outputAmount   = effectiveInput * outputReserve / (inputReserve * 100 + effectiveInput)
func OutputAmount(inputAmount, inputReserve, outputReserve *uint256.Int) (*uint256.Int, error) {
	if inputReserve.IsZero() || outputReserve.IsZero() {
		return nil, ErrEmptyReserves
	}
	if inputAmount.IsZero() {
		return new(uint256.Int), nil
	}

	effective, err := Mul(inputAmount, feeMul)
	if err != nil {
		return nil, err
	}
	num, err := Mul(effective, outputReserve)
	if err != nil {
		return nil, err
	}
	den, err := Mul(inputReserve, feeDen)
	if err != nil {
		return nil, err
	}
	den, err = Add(den, effective)
	if err != nil {
		return nil, err
	}
	return num.Div(num, den), nil
}

// CurveOutputAmount is OutputAmount without the fee: the raw constant-product
// output inputAmount * outputReserve / (inputReserve + inputAmount).
func CurveOutputAmount(inputAmount, inputReserve, outputReserve *uint256.Int) (*uint256.Int, error) {
	if inputReserve.IsZero() || outputReserve.IsZero() {
		return nil, ErrEmptyReserves
	}
	if inputAmount.IsZero() {
		return new(uint256.Int), nil
	}

	num, err := Mul(inputAmount, outputReserve)
	if err != nil {
		return nil, err
	}
	den, err := Add(inputReserve, inputAmount)
	if err != nil {
		return nil, err
	}
	return num.Div(num, den), nil
}

// Fee returns the part of inputAmount retained by the pool on a swap.
func Fee(inputAmount *uint256.Int) (*uint256.Int, error) {
	effective, err := Mul(inputAmount, feeMul)
	if err != nil {
		return nil, err
	}
	effective.Div(effective, feeDen)
	return new(uint256.Int).Sub(inputAmount, effective), nil
}

// Mul returns x*y in a fresh value, failing instead of wrapping.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// Add returns x+y in a fresh value, failing instead of wrapping.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// Sub returns x-y in a fresh value, failing on underflow.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	out, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// MulDiv returns floor(x*y/d). d must be non-zero.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	num, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return num.Div(num, d), nil
}
