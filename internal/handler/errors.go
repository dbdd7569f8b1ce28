package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"zuniswap/internal/exchange"
)

// Error is an API error carrying a stable code next to the HTTP status.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrInvalidBody is returned when a request body cannot be decoded.
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

// ErrInternal signals a server-side failure unrelated to the request.
var ErrInternal = fiber.NewError(fiber.StatusInternalServerError, "operation failed")

// NewAmountRequired returns a 400 Bad Request for a missing amount field.
func NewAmountRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" is required")
}

// NewInvalidAmount wraps an amount parsing error into a 400 Bad Request.
func NewInvalidAmount(field string, err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+": "+err.Error())
}

func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

// operationError maps pool and gateway failures to 400s with their code.
// Anything unrecognised is reported as ErrInternal.
func operationError(err error) error {
	code := exchange.ErrorCode(err)
	if code == "" {
		return ErrInternal
	}
	if errors.Is(err, exchange.ErrReserveMismatch) || errors.Is(err, exchange.ErrOverflow) {
		return &Error{Status: fiber.StatusInternalServerError, Code: code, Message: err.Error()}
	}
	return &Error{Status: fiber.StatusBadRequest, Code: code, Message: err.Error()}
}
