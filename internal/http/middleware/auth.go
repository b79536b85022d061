package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"nbconvert/internal/domain"
)

// APIKeyHeader carries the client token.
const APIKeyHeader = "X-API-Key"

// APIKeyLocal is the fiber locals key the validated token is stored under.
const APIKeyLocal = "api_key"

// TokenStore validates API tokens.
type TokenStore interface {
	Ready() bool
	Validate(token string) bool
}

// RequireAPIKey rejects requests without a known X-API-Key with 401, or
// 503 while the token store is still loading.
func RequireAPIKey(store TokenStore) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + APIKeyHeader,
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !store.Ready() {
				return false, domain.ErrTokenStoreNotReady
			}
			if !store.Validate(key) {
				return false, domain.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may call this with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, domain.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return errorJSON(c, status, err.Error())
		},
	})
}

// APIKey returns the validated token of the request, if any.
func APIKey(c *fiber.Ctx) string {
	token, _ := c.Locals(APIKeyLocal).(string)
	return token
}
