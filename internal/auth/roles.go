package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

// RequireAdmin restricts a route to administrators. It must run after
// AuthMiddleware.Handle and only reads the identity that middleware attached.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok || !identity.IsAdmin() {
			return apperrors.NewForbidden("admin access required")
		}
		return c.Next()
	}
}
