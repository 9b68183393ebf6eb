// Package identity turns bearer tokens into principals. Handlers only ever
// see a Principal; how it was proven is the provider's business.
package identity

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Principal struct {
	ID   uuid.UUID   `json:"id"`
	Role models.Role `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

// CanActFor reports whether p may read or act on userID's data.
func (p Principal) CanActFor(userID uuid.UUID) bool {
	return p.ID == userID || p.IsAdmin()
}

type Provider interface {
	Authenticate(token string) (Principal, error)
	Issue(p Principal) (string, error)
}
