package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

// CatalogHandler serves the public services list and the banners.
type CatalogHandler struct {
	DB *gorm.DB
}

func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{DB: db}
}

func (h *CatalogHandler) GetServices(c *fiber.Ctx) error {
	var services []models.Service
	err := h.DB.WithContext(c.UserContext()).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&services).Error
	if err != nil {
		return fail(c, apperror.Internal(err))
	}
	return c.JSON(services)
}

func (h *CatalogHandler) GetBanners(c *fiber.Ctx) error {
	var banners []models.Banner
	err := h.DB.WithContext(c.UserContext()).
		Where("is_active = ?", true).
		Order("order_index ASC").
		Find(&banners).Error
	if err != nil {
		return fail(c, apperror.Internal(err))
	}
	return c.JSON(banners)
}

type bannerReq struct {
	Title      *string `json:"title"`
	ImageURL   *string `json:"image_url"`
	LinkURL    *string `json:"link_url"`
	OrderIndex *int    `json:"order_index"`
	IsActive   *bool   `json:"is_active"`
}

func (h *CatalogHandler) CreateBanner(c *fiber.Ctx) error {
	var req bannerReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return badRequest(c, "title is required")
	}
	if req.ImageURL == nil || strings.TrimSpace(*req.ImageURL) == "" {
		return badRequest(c, "image_url is required")
	}

	b := models.Banner{
		Title:    strings.TrimSpace(*req.Title),
		ImageURL: strings.TrimSpace(*req.ImageURL),
		IsActive: true,
	}
	if req.LinkURL != nil {
		b.LinkURL = strings.TrimSpace(*req.LinkURL)
	}
	if req.OrderIndex != nil {
		b.OrderIndex = *req.OrderIndex
	}

	err := h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
		// is_active has a database default, so false must be written explicitly
		if req.IsActive != nil && !*req.IsActive {
			b.IsActive = false
			return tx.Model(&b).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return fail(c, apperror.Internal(err))
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (h *CatalogHandler) UpdateBanner(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req bannerReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.ImageURL != nil {
		updates["image_url"] = strings.TrimSpace(*req.ImageURL)
	}
	if req.LinkURL != nil {
		updates["link_url"] = strings.TrimSpace(*req.LinkURL)
	}
	if req.OrderIndex != nil {
		updates["order_index"] = *req.OrderIndex
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	db := h.DB.WithContext(c.UserContext())
	var b models.Banner
	if err := db.First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, apperror.NotFound("banner not found"))
		}
		return fail(c, apperror.Internal(err))
	}
	if len(updates) > 0 {
		if err := db.Model(&b).Updates(updates).Error; err != nil {
			return fail(c, apperror.Internal(err))
		}
	}
	if err := db.First(&b, "id = ?", id).Error; err != nil {
		return fail(c, apperror.Internal(err))
	}
	return c.JSON(b)
}
