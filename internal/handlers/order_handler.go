package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/order"
)

type OrderHandler struct {
	Orders *order.Service
}

func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{Orders: orders}
}

func isAssignedMitra(p identity.Principal, o *models.Order) bool {
	return p.Role == models.RoleMitra && o.MitraID != nil && *o.MitraID == p.ID
}

// canView: the customer, the assigned mitra and admins see an order; any
// mitra may see an open (pending) one.
func canView(p identity.Principal, o *models.Order) bool {
	switch {
	case p.CanActFor(o.UserID), isAssignedMitra(p, o):
		return true
	case p.Role == models.RoleMitra && o.Status == models.OrderStatusPending:
		return true
	}
	return false
}

// List: admins filter freely. Customers only see their own orders. A
// mitra sees its own jobs, or the open job board with ?status=pending.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	me := principal(c)

	var f order.ListFilter
	var err error
	if f.UserID, err = queryUUID(c, "userId"); err != nil {
		return fail(c, err)
	}
	if f.MitraID, err = queryUUID(c, "mitraId"); err != nil {
		return fail(c, err)
	}
	f.Status = models.OrderStatus(strings.TrimSpace(c.Query("status")))

	switch me.Role {
	case models.RoleUser:
		f.UserID, f.MitraID = &me.ID, nil
	case models.RoleMitra:
		if f.Status == models.OrderStatusPending && f.MitraID == nil {
			f.UserID = nil
		} else {
			f.UserID, f.MitraID = nil, &me.ID
		}
	}

	orders, err := h.Orders.List(c.UserContext(), f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	o, err := h.Orders.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	if !canView(principal(c), o) {
		return forbidden(c)
	}
	return c.JSON(o)
}

type createOrderReq struct {
	ServiceID     string   `json:"service_id"`
	ScheduledDate string   `json:"scheduled_date"`
	ScheduledTime string   `json:"scheduled_time"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	PaymentMethod string   `json:"payment_method"`
	Notes         string   `json:"notes"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req createOrderReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
	if err != nil {
		return badRequest(c, "invalid service_id")
	}

	o, err := h.Orders.Create(c.UserContext(), order.CreateInput{
		UserID:        principal(c).ID,
		ServiceID:     serviceID,
		ScheduledDate: strings.TrimSpace(req.ScheduledDate),
		ScheduledTime: strings.TrimSpace(req.ScheduledTime),
		Address:       req.Address,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		PaymentMethod: models.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(o)
}

type updateOrderReq struct {
	Notes         *string `json:"notes"`
	Address       *string `json:"address"`
	ScheduledDate *string `json:"scheduled_date"`
	ScheduledTime *string `json:"scheduled_time"`
}

func (h *OrderHandler) Update(c *fiber.Ctx) error {
	o, ok, err := h.authorize(c, func(p identity.Principal, o *models.Order) bool {
		return p.CanActFor(o.UserID)
	})
	if !ok {
		return err
	}

	var req updateOrderReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	updated, err := h.Orders.Update(c.UserContext(), o.ID, order.UpdateInput{
		Notes:         req.Notes,
		Address:       req.Address,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(updated)
}

type acceptReq struct {
	MitraID string `json:"mitraId"`
}

// Accept: a mitra accepts for itself; an admin names the mitra in the body.
func (h *OrderHandler) Accept(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	me := principal(c)
	mitraID := me.ID
	if me.IsAdmin() {
		var req acceptReq
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid body")
		}
		if mitraID, err = uuid.Parse(strings.TrimSpace(req.MitraID)); err != nil {
			return badRequest(c, "invalid mitraId")
		}
	} else if me.Role != models.RoleMitra {
		return forbidden(c)
	}

	o, err := h.Orders.Accept(c.UserContext(), id, mitraID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(o)
}

func (h *OrderHandler) Start(c *fiber.Ctx) error {
	o, ok, err := h.authorize(c, func(p identity.Principal, o *models.Order) bool {
		return isAssignedMitra(p, o) || p.IsAdmin()
	})
	if !ok {
		return err
	}
	started, err := h.Orders.Start(c.UserContext(), o.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(started)
}

func (h *OrderHandler) Complete(c *fiber.Ctx) error {
	o, ok, err := h.authorize(c, func(p identity.Principal, o *models.Order) bool {
		return isAssignedMitra(p, o) || p.IsAdmin()
	})
	if !ok {
		return err
	}
	done, err := h.Orders.Complete(c.UserContext(), o.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(done)
}

type rateReq struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func (h *OrderHandler) Rate(c *fiber.Ctx) error {
	o, ok, err := h.authorize(c, func(p identity.Principal, o *models.Order) bool {
		return p.ID == o.UserID
	})
	if !ok {
		return err
	}

	var req rateReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rated, err := h.Orders.Rate(c.UserContext(), o.ID, req.Rating, req.Review)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rated)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	o, ok, err := h.authorize(c, func(p identity.Principal, o *models.Order) bool {
		return p.CanActFor(o.UserID) || isAssignedMitra(p, o)
	})
	if !ok {
		return err
	}

	var req cancelReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	cancelled, err := h.Orders.Cancel(c.UserContext(), o.ID, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(cancelled)
}

// authorize loads the :id order and checks allowed. When ok is false the
// response has already been written and err is what the handler returns.
func (h *OrderHandler) authorize(c *fiber.Ctx, allowed func(identity.Principal, *models.Order) bool) (*models.Order, bool, error) {
	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, false, fail(c, err)
	}
	o, err := h.Orders.Get(c.UserContext(), id)
	if err != nil {
		return nil, false, fail(c, err)
	}
	if !allowed(principal(c), o) {
		return nil, false, forbidden(c)
	}
	return o, true, nil
}
