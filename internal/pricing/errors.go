package pricing

import "errors"

var (
	ErrEmptyReserves  = errors.New("empty reserves")
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("arithmetic overflow")
)
