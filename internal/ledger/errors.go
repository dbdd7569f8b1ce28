package ledger

import "errors"

var (
	ErrInsufficientShareBalance = errors.New("insufficient share balance")
	ErrZeroAddress              = errors.New("zero address")
)
