package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/validation"
)

const internalErrorMessage = "Internal server error"

// ErrorHandler renders every error as {success:false, error}. Anything that
// is not a client error is logged and hidden behind a generic 500.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := internalErrorMessage

		var fiberErr *fiber.Error
		var fieldErr *validation.FieldError
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		case errors.As(err, &fieldErr):
			code = fiber.StatusBadRequest
			message = fieldErr.Message
		default:
			RequestLogger(c, log).Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				logger.Err(err),
			)
		}

		if code >= fiber.StatusInternalServerError {
			message = internalErrorMessage
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

// RequestLogger returns log annotated with the request id set by the requestid middleware.
func RequestLogger(c *fiber.Ctx, log *slog.Logger) *slog.Logger {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return log.With(slog.String("request_id", id))
	}
	return log
}
