package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

type ProfileHandler struct {
	DB *gorm.DB
}

type profileResponse struct {
	models.Profile
	User  *models.UserProfile  `json:"user_profile,omitempty"`
	Mitra *models.MitraProfile `json:"mitra_profile,omitempty"`
}

// publicProfile is what callers other than the owner or an admin see.
type publicProfile struct {
	ID         uuid.UUID    `json:"id"`
	FullName   string       `json:"full_name"`
	Role       models.Role  `json:"role"`
	IsVerified bool         `json:"is_verified"`
	Mitra      *publicMitra `json:"mitra_profile,omitempty"`
}

type publicMitra struct {
	IsActive     bool           `json:"is_active"`
	ServiceTypes datatypes.JSON `json:"service_types"`
	ProfileImage string         `json:"profile_image"`
	Description  string         `json:"description"`
}

func (r *profileResponse) public() publicProfile {
	pub := publicProfile{
		ID:         r.ID,
		FullName:   r.FullName,
		Role:       r.Role,
		IsVerified: r.IsVerified,
	}
	if r.Mitra != nil {
		pub.Mitra = &publicMitra{
			IsActive:     r.Mitra.IsActive,
			ServiceTypes: r.Mitra.ServiceTypes,
			ProfileImage: r.Mitra.ProfileImage,
			Description:  r.Mitra.Description,
		}
	}
	return pub
}

// load attaches the role's sub-profile. A missing row is left nil; reads
// never create one.
func (h *ProfileHandler) load(c *fiber.Ctx, p *models.Profile) (*profileResponse, error) {
	db := h.DB.WithContext(c.UserContext())
	resp := &profileResponse{Profile: *p}

	var err error
	switch p.Role {
	case models.RoleUser:
		var up models.UserProfile
		if err = db.First(&up, "user_id = ?", p.ID).Error; err == nil {
			resp.User = &up
		}
	case models.RoleMitra:
		var mp models.MitraProfile
		if err = db.First(&mp, "mitra_id = ?", p.ID).Error; err == nil {
			resp.Mitra = &mp
		}
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Internal(err)
	}
	return resp, nil
}

func (h *ProfileHandler) find(c *fiber.Ctx) (*models.Profile, error) {
	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, err
	}
	var p models.Profile
	err = h.DB.WithContext(c.UserContext()).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("profile not found")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &p, nil
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	p, err := h.find(c)
	if err != nil {
		return fail(c, err)
	}
	resp, err := h.load(c, p)
	if err != nil {
		return fail(c, err)
	}
	if !principal(c).CanActFor(p.ID) {
		return c.JSON(resp.public())
	}
	return c.JSON(resp)
}

type createProfileReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// Create lets an admin add any account, including other admins.
func (h *ProfileHandler) Create(c *fiber.Ctx) error {
	var req createProfileReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = models.RoleUser
	}
	if !strings.Contains(email, "@") {
		return badRequest(c, "email is not valid")
	}
	if !role.Valid() {
		return badRequest(c, "role must be user, mitra or admin")
	}

	password := strings.TrimSpace(req.Password)
	if password == "" {
		password = randomState(24)
	}
	hash, err := identity.HashPassword(password)
	if err != nil {
		return fail(c, apperror.Internal(err))
	}

	p := models.Profile{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
	}
	if err := createProfile(h.DB.WithContext(c.UserContext()), &p); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

type updateProfileReq struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`

	Address      *string         `json:"address"`
	Description  *string         `json:"description"`
	ProfileImage *string         `json:"profile_image"`
	ServiceTypes json.RawMessage `json:"service_types"`

	// admin only
	IsVerified *bool `json:"is_verified"`
	IsBlocked  *bool `json:"is_blocked"`
}

func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	p, err := h.find(c)
	if err != nil {
		return fail(c, err)
	}
	me := principal(c)
	if !me.CanActFor(p.ID) {
		return forbidden(c)
	}

	var req updateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if (req.IsVerified != nil || req.IsBlocked != nil) && !me.IsAdmin() {
		return forbidden(c)
	}

	profile := map[string]any{}
	if req.FullName != nil {
		profile["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		profile["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.IsVerified != nil {
		profile["is_verified"] = *req.IsVerified
	}
	if req.IsBlocked != nil {
		profile["is_blocked"] = *req.IsBlocked
	}

	sub := map[string]any{}
	switch p.Role {
	case models.RoleUser:
		if req.Address != nil {
			sub["address"] = strings.TrimSpace(*req.Address)
		}
	case models.RoleMitra:
		if req.Description != nil {
			sub["description"] = strings.TrimSpace(*req.Description)
		}
		if req.ProfileImage != nil {
			sub["profile_image"] = strings.TrimSpace(*req.ProfileImage)
		}
		if len(req.ServiceTypes) > 0 {
			var types []string
			if err := json.Unmarshal(req.ServiceTypes, &types); err != nil {
				return badRequest(c, "service_types must be a list of strings")
			}
			sub["service_types"] = datatypes.JSON(req.ServiceTypes)
		}
	}

	err = h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if len(profile) > 0 {
			if err := tx.Model(p).Updates(profile).Error; err != nil {
				return apperror.Internal(err)
			}
		}
		if len(sub) == 0 {
			return nil
		}
		var model any = &models.UserProfile{UserID: p.ID}
		if p.Role == models.RoleMitra {
			model = &models.MitraProfile{MitraID: p.ID}
		}
		if err := tx.Where(model).FirstOrCreate(model).Error; err != nil {
			return apperror.Internal(err)
		}
		if err := tx.Model(model).Updates(sub).Error; err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	if p, err = h.find(c); err != nil {
		return fail(c, err)
	}
	resp, err := h.load(c, p)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}
