package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/foliolab/enrich/internal/logging"
)

// UserClaims is the JWT payload the auth middleware expects.
type UserClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// JWTGuard guards mutation endpoints (submit, cancel and the
// annotation actions) with a bearer token signed with secret.
func JWTGuard(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return writeError(c, fiber.StatusUnauthorized, "unauthorized", "missing bearer token")
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims := &UserClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return writeError(c, fiber.StatusUnauthorized, "unauthorized", "invalid or expired token")
		}

		c.Locals("user", claims)
		return c.Next()
	}
}

// ErrorHandler is Fiber's centralized error handler, translating panics
// and returned errors into the APIResponse envelope instead of
// Fiber's default plaintext error body.
func ErrorHandler(log *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		}
		log.Errorf("request failed: %v", err)
		return writeError(c, code, "internal_error", err.Error())
	}
}
