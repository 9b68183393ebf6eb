package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

type MitraDashboardHandler struct {
	DB *gorm.DB
}

func NewMitraDashboardHandler(db *gorm.DB) *MitraDashboardHandler {
	return &MitraDashboardHandler{DB: db}
}

type MitraDashboard struct {
	ActiveOrders    int64           `json:"active_orders"`
	CompletedOrders int64           `json:"completed_orders"`
	UnreadChats     int64           `json:"unread_chats"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
	AverageRating   float64         `json:"average_rating"`
	RatedOrders     int64           `json:"rated_orders"`
}

// GetDashboardStats summarises the calling mitra's workload and earnings.
func (h *MitraDashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	st, err := h.stats(h.DB.WithContext(c.UserContext()), principal(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(st)
}

func (h *MitraDashboardHandler) stats(db *gorm.DB, mitraID uuid.UUID) (*MitraDashboard, error) {
	var st MitraDashboard

	err := db.Model(&models.Order{}).
		Where("mitra_id = ? AND status IN ?", mitraID, []models.OrderStatus{
			models.OrderStatusAccepted,
			models.OrderStatusInProgress,
		}).
		Count(&st.ActiveOrders).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}

	err = db.Model(&models.Order{}).
		Where("mitra_id = ? AND status = ?", mitraID, models.OrderStatusCompleted).
		Count(&st.CompletedOrders).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}

	err = db.Model(&models.ChatMessage{}).
		Where("receiver_id = ? AND is_read = ?", mitraID, false).
		Count(&st.UnreadChats).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}

	err = db.Model(&models.BalanceTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND status = ?", mitraID, models.TrxCommission, models.ApprovalApproved).
		Row().Scan(&st.TotalEarnings)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	var rating struct {
		Avg   *float64
		Count int64
	}
	err = db.Model(&models.Order{}).
		Select("AVG(rating) AS avg, COUNT(rating) AS count").
		Where("mitra_id = ? AND rating IS NOT NULL", mitraID).
		Scan(&rating).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if rating.Avg != nil {
		st.AverageRating = *rating.Avg
	}
	st.RatedOrders = rating.Count

	return &st, nil
}

// GetEarnings lists the mitra's commission payouts, newest first.
func (h *MitraDashboardHandler) GetEarnings(c *fiber.Ctx) error {
	var rows []models.BalanceTransaction
	err := h.DB.WithContext(c.UserContext()).
		Where("user_id = ? AND type = ?", principal(c).ID, models.TrxCommission).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return fail(c, apperror.Internal(err))
	}
	return c.JSON(rows)
}
