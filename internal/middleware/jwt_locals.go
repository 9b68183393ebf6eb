package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
)

const principalKey = "principal"

func setPrincipal(c *fiber.Ctx, p identity.Principal) {
	c.Locals(principalKey, p)
	c.Locals("userId", p.ID.String())
	c.Locals("role", string(p.Role))
}

// Principal returns the authenticated caller. ok is false on routes that
// are not behind Authenticate.
func Principal(c *fiber.Ctx) (identity.Principal, bool) {
	p, ok := c.Locals(principalKey).(identity.Principal)
	return p, ok
}
