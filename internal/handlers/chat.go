package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
)

const maxMessageLen = 2000

// ChatHandler keeps the per-order message log between a customer and the
// assigned mitra.
type ChatHandler struct {
	DB       *gorm.DB
	Notifier realtime.Notifier
}

func NewChatHandler(db *gorm.DB, notifier realtime.Notifier) *ChatHandler {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &ChatHandler{DB: db, Notifier: notifier}
}

// counterpart returns the other participant of the order's chat for p.
func counterpart(p identity.Principal, o *models.Order) (uuid.UUID, error) {
	if o.MitraID == nil {
		return uuid.Nil, apperror.Precondition("order has no mitra yet")
	}
	switch p.ID {
	case o.UserID:
		return *o.MitraID, nil
	case *o.MitraID:
		return o.UserID, nil
	}
	return uuid.Nil, nil
}

func (h *ChatHandler) loadOrder(c *fiber.Ctx, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := h.DB.WithContext(c.UserContext()).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("order not found")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &o, nil
}

func isParticipant(p identity.Principal, o *models.Order) bool {
	return p.ID == o.UserID || (o.MitraID != nil && p.ID == *o.MitraID) || p.IsAdmin()
}

// GetMessages lists the order's chat oldest first and marks the caller's
// incoming messages as read.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	orderID, err := paramUUID(c, "orderId")
	if err != nil {
		return fail(c, err)
	}
	o, err := h.loadOrder(c, orderID)
	if err != nil {
		return fail(c, err)
	}
	me := principal(c)
	if !isParticipant(me, o) {
		return forbidden(c)
	}

	db := h.DB.WithContext(c.UserContext())
	var msgs []models.ChatMessage
	if err := db.Where("order_id = ?", orderID).Order("created_at ASC").Find(&msgs).Error; err != nil {
		return fail(c, apperror.Internal(err))
	}

	err = db.Model(&models.ChatMessage{}).
		Where("order_id = ? AND receiver_id = ? AND is_read = ?", orderID, me.ID, false).
		Update("is_read", true).Error
	if err != nil {
		return fail(c, apperror.Internal(err))
	}
	return c.JSON(msgs)
}

type sendMessageReq struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return badRequest(c, "message is required")
	}
	if len(text) > maxMessageLen {
		return badRequest(c, "message is too long")
	}
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		return badRequest(c, "invalid order_id")
	}

	o, err := h.loadOrder(c, orderID)
	if err != nil {
		return fail(c, err)
	}
	me := principal(c)
	receiver, err := counterpart(me, o)
	if err != nil {
		return fail(c, err)
	}
	if receiver == uuid.Nil {
		return forbidden(c)
	}

	msg := models.ChatMessage{
		SenderID:   me.ID,
		ReceiverID: receiver,
		OrderID:    o.ID,
		Message:    text,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&msg).Error; err != nil {
		return fail(c, apperror.Internal(err))
	}

	h.Notifier.Notify(c.UserContext(), receiver, realtime.Event{Type: realtime.EventChatMessage, Data: msg})
	return c.Status(fiber.StatusCreated).JSON(msg)
}
