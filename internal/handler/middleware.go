package handler

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
)

// publicPaths skip API key authentication.
var publicPaths = map[string]struct{}{
	"/v1/recipients/unsubscribe": {},
}

// RequireAPIKey guards /v1 with `Authorization: Bearer <key>`.
func RequireAPIKey(apiKey string) fiber.Handler {
	expected := []byte(apiKey)

	return keyauth.New(keyauth.Config{
		Next: func(c *fiber.Ctx) bool {
			_, ok := publicPaths[strings.TrimRight(c.Path(), "/")]
			return ok
		},
		KeyLookup:  "header:" + fiber.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), expected) == 1 {
				return true, nil
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid api key")
		},
	})
}

// CorrelationID copies the request id into the user context so services log it.
// Must run after the requestid middleware.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := requestCorrelationID(c); id != "" {
			c.SetUserContext(observability.WithCorrelationID(c.UserContext(), id))
		}
		return c.Next()
	}
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
