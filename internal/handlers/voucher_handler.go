package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/voucher"
)

type VoucherHandler struct {
	Vouchers *voucher.Service
}

func (h *VoucherHandler) List(c *fiber.Ctx) error {
	vouchers, err := h.Vouchers.ListActive(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(vouchers)
}

// Use redeems the voucher for the caller.
func (h *VoucherHandler) Use(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	usage, err := h.Vouchers.Redeem(c.UserContext(), id, principal(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(usage)
}
