package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/formdesk-api/internal/auth"
	"github.com/noah-isme/formdesk-api/internal/utils"
)

// Locals keys populated by SessionAuth.
const (
	LocalAccountID = "account_id"
	LocalUsername  = "username"
	LocalIsAdmin   = "is_admin"
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// SessionAuth returns a middleware that requires a valid bearer session token.
// Account state is not re-checked here.
func SessionAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "Access token required")
		}

		const bearer = "bearer "
		if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "Invalid authorization header")
		}

		claims, err := verifier.Verify(authorization[len(bearer):])
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return utils.SendError(c, fiber.StatusUnauthorized, "Token expired")
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals(LocalAccountID, claims.AccountID())
		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalIsAdmin, claims.IsAdmin)

		return c.Next()
	}
}

// AccountID returns the authenticated account id, or "" when the request is anonymous.
func AccountID(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalAccountID).(string); ok {
		return value
	}
	return ""
}

// Username returns the username carried by the session token.
func Username(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalUsername).(string); ok {
		return value
	}
	return ""
}

// IsAdmin reports whether the session token carries the admin flag.
func IsAdmin(c *fiber.Ctx) bool {
	value, ok := c.Locals(LocalIsAdmin).(bool)
	return ok && value
}
