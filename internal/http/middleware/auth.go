package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"pdfservice/internal/infra/logging"
	"pdfservice/internal/tokens"
)

// TokenValidator checks a presented bearer token.
type TokenValidator interface {
	Validate(token string) error
}

// Auth requires "Authorization: Bearer <token>" on every request it guards. Valid tokens are
// stored under APIKeyLocal.
func Auth(v TokenValidator) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + fiber.HeaderAuthorization,
		AuthScheme: "Bearer",
		ContextKey: APIKeyLocal,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if err := v.Validate(key); err != nil {
				return false, err
			}
			return true, nil
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may pass a nil error.
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			status := fiber.StatusUnauthorized
			msg := "Unauthorized"
			switch {
			case errors.Is(err, tokens.ErrTokenStoreNotReady):
				status = fiber.StatusServiceUnavailable
				msg = err.Error()
			case errors.Is(err, tokens.ErrInvalidAPIKey):
				msg = err.Error()
			case errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey):
				msg = "missing or malformed bearer token"
			}
			logging.Warn("Authentication failed", "path", c.Path(), "status", status, "error", err)
			return errorJSON(c, status, msg)
		},
	})
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    status,
			"message": msg,
		},
	})
}
