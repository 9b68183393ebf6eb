package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
)

const CookieName = "mt_token"

// TokenFromRequest reads the session token from the mt_token cookie, falling
// back to an Authorization: Bearer header.
func TokenFromRequest(c *fiber.Ctx) string {
	if tok := c.Cookies(CookieName); tok != "" {
		return tok
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Authenticate rejects requests without a valid token and stores the
// caller's principal in locals.
func Authenticate(provider identity.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := TokenFromRequest(c)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		p, err := provider.Authenticate(tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		setPrincipal(c, p)
		return c.Next()
	}
}
