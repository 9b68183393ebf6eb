package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/topup"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
)

type WalletHandler struct {
	DB     *gorm.DB
	Ledger *wallet.Ledger
	TopUps *topup.Service
}

func (h *WalletHandler) Balance(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	if !principal(c).CanActFor(userID) {
		return forbidden(c)
	}

	balance, err := h.Ledger.Balance(c.UserContext(), h.DB, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"balance": balance})
}

func (h *WalletHandler) Transactions(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "userId")
	if err != nil {
		return fail(c, err)
	}
	if !principal(c).CanActFor(userID) {
		return forbidden(c)
	}

	rows, err := h.Ledger.History(c.UserContext(), h.DB, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}

type topUpReq struct {
	Amount decimal.Decimal `json:"amount"`
}

// CreateTopUp files a request for the caller's own account.
func (h *WalletHandler) CreateTopUp(c *fiber.Ctx) error {
	var req topUpReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	r, err := h.TopUps.Create(c.UserContext(), principal(c).ID, req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (h *WalletHandler) ListTopUps(c *fiber.Ctx) error {
	reqs, err := h.TopUps.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(reqs)
}

func (h *WalletHandler) ApproveTopUp(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	res, err := h.TopUps.Approve(c.UserContext(), id, principal(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *WalletHandler) RejectTopUp(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	res, err := h.TopUps.Reject(c.UserContext(), id, principal(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}
