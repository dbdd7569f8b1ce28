// Package handler serves an in-memory exchange pool over HTTP.
package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// BaseHandler provides common dependencies for HTTP handlers.
type BaseHandler struct {
	logger *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ErrorHandler renders every error as a JSON body. Errors that are not
// *fiber.Error become 500s.
func ErrorHandler(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	resp := errorResponse{Error: "internal error"}

	var apiErr *Error
	var fe *fiber.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
		resp = errorResponse{Error: apiErr.Message, Code: apiErr.Code}
	case errors.As(err, &fe):
		status = fe.Code
		resp.Error = fe.Message
	}
	return c.Status(status).JSON(resp)
}
