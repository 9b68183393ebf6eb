package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuthHandler struct {
	Auth            *AuthHandler
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) tempCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Auth.Secure,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	next := c.Query("next", "/")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	st := randomState(32)

	h.tempCookie(c, "oauth_state", st, 10*60)
	h.tempCookie(c, "oauth_next", next, 10*60)

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleCallback signs the Google account in, creating a user profile on
// first visit, and sends the browser back to the frontend.
func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return badRequest(c, "missing code or state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	if stCookie == "" || stCookie != state {
		return badRequest(c, "invalid state")
	}

	cfg := h.oauthCfg()
	tok, err := cfg.Exchange(c.UserContext(), code)
	if err != nil {
		return badRequest(c, "failed to exchange code")
	}

	resp, err := cfg.Client(c.UserContext(), tok).Get(googleUserInfoURL)
	if err != nil {
		return badRequest(c, "failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return badRequest(c, "failed to decode userinfo")
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	name := strings.TrimSpace(gu.Name)
	if email == "" {
		return badRequest(c, "google account has no email")
	}

	db := h.Auth.DB.WithContext(c.UserContext())
	var p models.Profile
	err = db.Where("email = ?", email).First(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// random password: this account signs in through Google only
		hashed, herr := identity.HashPassword(randomState(24))
		if herr != nil {
			return fail(c, herr)
		}
		p = models.Profile{
			Email:        email,
			PasswordHash: hashed,
			FullName:     name,
			Role:         models.RoleUser,
		}
		if err := createProfile(db, &p); err != nil {
			logger.Error("create profile via google", "email", email, "error", err)
			return fail(c, err)
		}
	case err != nil:
		return fail(c, err)
	case name != "" && p.FullName == "":
		p.FullName = name
		_ = db.Model(&p).Update("full_name", name).Error
	}

	if p.IsBlocked {
		u := h.FrontendBaseURL + "/auth/login?err=" + url.QueryEscape("account is blocked")
		return c.Redirect(u, http.StatusTemporaryRedirect)
	}

	if err := h.Auth.setSession(c, p); err != nil {
		return fail(c, err)
	}
	h.tempCookie(c, "oauth_state", "", -1)
	h.tempCookie(c, "oauth_next", "", -1)

	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}
