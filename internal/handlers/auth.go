package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

type AuthHandler struct {
	DB       *gorm.DB
	Provider identity.Provider
	Expires  int
	Secure   bool
}

type RegisterReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // user / mitra, admin never from public signup
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  "validation error",
		"fields": errs,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	name := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	password := strings.TrimSpace(req.Password)
	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = models.RoleUser
	}

	errs := FieldErrors{}
	if name == "" {
		errs.Add("full_name", "full name is required")
	}
	if email == "" {
		errs.Add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "email is not valid")
	}
	if password == "" {
		errs.Add("password", "password is required")
	} else if len(password) < 6 {
		errs.Add("password", "password must be at least 6 characters")
	}
	if phone != "" && len(phone) < 8 {
		errs.Add("phone", "phone number is not valid")
	}
	if role != models.RoleUser && role != models.RoleMitra {
		errs.Add("role", "role must be user or mitra")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var existing models.Profile
	err := h.DB.WithContext(c.UserContext()).Where("email = ?", email).First(&existing).Error
	if err == nil {
		errs.Add("email", "email is already registered")
		return validationFail(c, errs)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, apperror.Internal(err))
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		return fail(c, apperror.Internal(err))
	}

	p := models.Profile{
		Email:        email,
		PasswordHash: hash,
		FullName:     name,
		Phone:        phone,
		Role:         role,
	}
	if err := createProfile(h.DB.WithContext(c.UserContext()), &p); err != nil {
		return fail(c, err)
	}

	if err := h.setSession(c, p); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// createProfile inserts p together with its role specific sub-profile.
func createProfile(db *gorm.DB, p *models.Profile) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Precondition("email is already registered")
			}
			return apperror.Internal(err)
		}
		switch p.Role {
		case models.RoleUser:
			if err := tx.Create(&models.UserProfile{UserID: p.ID}).Error; err != nil {
				return apperror.Internal(err)
			}
		case models.RoleMitra:
			if err := tx.Create(&models.MitraProfile{MitraID: p.ID}).Error; err != nil {
				return apperror.Internal(err)
			}
		}
		return nil
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := FieldErrors{}
	if email == "" {
		errs.Add("email", "email is required")
	}
	if password == "" {
		errs.Add("password", "password is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var p models.Profile
	err := h.DB.WithContext(c.UserContext()).Where("email = ?", email).First(&p).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, apperror.Internal(err))
	}
	if err != nil || !identity.CheckPassword(p.PasswordHash, password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "wrong email or password"})
	}
	if p.IsBlocked {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account is blocked"})
	}

	if err := h.setSession(c, p); err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.Secure,
		SameSite: "Lax",
	})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	var p models.Profile
	err := h.DB.WithContext(c.UserContext()).First(&p, "id = ?", principal(c).ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, apperror.NotFound("profile not found"))
	}
	if err != nil {
		return fail(c, apperror.Internal(err))
	}
	return c.JSON(p)
}

func (h *AuthHandler) setSession(c *fiber.Ctx, p models.Profile) error {
	token, err := h.Provider.Issue(identity.Principal{ID: p.ID, Role: p.Role})
	if err != nil {
		return apperror.Internal(err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Secure,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
	return nil
}
