package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/formdesk-api/internal/utils"
)

// RequireAdmin ensures the session belongs to an administrator. It must run after SessionAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if AccountID(c) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "Authentication required")
		}
		if !IsAdmin(c) {
			return utils.SendError(c, fiber.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}
