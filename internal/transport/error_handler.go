package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"go.uber.org/zap"
)

// ErrorBody is the JSON payload of every failed API request.
type ErrorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		body := ErrorBody{Error: err.Error()}

		var fiberErr *fiber.Error
		var validationErr *ValidationError
		switch {
		case errors.As(err, &validationErr):
			code = fiber.StatusBadRequest
			body = ErrorBody{Error: validationErr.Error(), Fields: validationErr.Fields}
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			fields = append(fields, zap.String("correlationId", id))
		}

		log := observability.WithContextLogger(logger, c.UserContext())
		if code >= fiber.StatusInternalServerError {
			log.Error("request error", fields...)
		} else {
			log.Warn("request rejected", fields...)
		}

		if code >= fiber.StatusInternalServerError && code != fiber.StatusBadGateway {
			body.Error = fiber.ErrInternalServerError.Message
		}
		return c.Status(code).JSON(body)
	}
}
