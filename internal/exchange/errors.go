package exchange

import (
	"errors"

	"zuniswap/internal/asset"
	"zuniswap/internal/ledger"
	"zuniswap/internal/pricing"
)

var (
	ErrEmptyReserves            = pricing.ErrEmptyReserves
	ErrDivisionByZero           = pricing.ErrDivisionByZero
	ErrOverflow                 = pricing.ErrOverflow
	ErrInsufficientShareBalance = ledger.ErrInsufficientShareBalance

	ErrInsufficientTokenAmount  = errors.New("insufficient token amount")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrUnbalancedDeposit        = errors.New("initial deposit needs both assets")
	ErrReserveMismatch          = errors.New("reserve mismatch")
	ErrInvalidAddress           = errors.New("invalid address")
	ErrPoolNotEmpty             = errors.New("pool address already holds assets")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrEmptyReserves, "empty_reserves"},
	{ErrInsufficientTokenAmount, "insufficient_token_amount"},
	{ErrInsufficientOutputAmount, "insufficient_output_amount"},
	{ErrInsufficientShareBalance, "insufficient_share_balance"},
	{ErrDivisionByZero, "division_by_zero"},
	{ErrOverflow, "overflow"},
	{ErrUnbalancedDeposit, "unbalanced_deposit"},
	{ErrReserveMismatch, "reserve_mismatch"},
	{ErrInvalidAddress, "invalid_address"},
	{asset.ErrInsufficientBalance, "insufficient_balance"},
	{asset.ErrInsufficientAllowance, "insufficient_allowance"},
	{asset.ErrInvalidReceiver, "invalid_receiver"},
}

// ErrorCode returns a stable snake_case name for err, or "" when err is not
// one of the pool or gateway sentinels.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}
