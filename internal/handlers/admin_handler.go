package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/admin"
)

type AdminHandler struct {
	Admin *admin.Service
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	st, err := h.Admin.Stats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(st)
}

type transferReq struct {
	FromUserID  string          `json:"fromUserId"`
	ToUserID    string          `json:"toUserId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *AdminHandler) Transfer(c *fiber.Ctx) error {
	var req transferReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	from, err := uuid.Parse(strings.TrimSpace(req.FromUserID))
	if err != nil {
		return badRequest(c, "invalid fromUserId")
	}
	to, err := uuid.Parse(strings.TrimSpace(req.ToUserID))
	if err != nil {
		return badRequest(c, "invalid toUserId")
	}

	res, err := h.Admin.Transfer(c.UserContext(), admin.TransferInput{
		From:        from,
		To:          to,
		Amount:      req.Amount,
		Description: req.Description,
		AdminID:     principal(c).ID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *AdminHandler) ToggleMitraStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	p, err := h.Admin.ToggleMitraStatus(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}
