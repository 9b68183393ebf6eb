package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/middleware"
)

// ErrorHandler is the fiber error handler: every failure leaves as
// {"error": "..."}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return fail(c, err)
}

// fail renders a service error. Internal errors are logged and reported
// with a generic message.
func fail(c *fiber.Ctx, err error) error {
	status := apperror.Status(err)
	if status >= fiber.StatusInternalServerError {
		logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": apperror.Message(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
}

// principal returns the caller; the route must sit behind Authenticate.
func principal(c *fiber.Ctx) identity.Principal {
	p, _ := middleware.Principal(c)
	return p
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(name)))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + name)
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("invalid " + name)
	}
	return &id, nil
}
