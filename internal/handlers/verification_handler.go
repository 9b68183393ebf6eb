package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/verification"
)

type VerificationHandler struct {
	Verifications *verification.Service
}

func (h *VerificationHandler) List(c *fiber.Ctx) error {
	rows, err := h.Verifications.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}

type submitVerificationReq struct {
	KTPImage string `json:"ktp_image"`
	KKImage  string `json:"kk_image"`
}

func (h *VerificationHandler) Submit(c *fiber.Ctx) error {
	var req submitVerificationReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	v, err := h.Verifications.Submit(c.UserContext(), principal(c).ID, req.KTPImage, req.KKImage)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (h *VerificationHandler) Approve(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	res, err := h.Verifications.Approve(c.UserContext(), id, principal(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (h *VerificationHandler) Reject(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req rejectReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	res, err := h.Verifications.Reject(c.UserContext(), id, principal(c).ID, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}
