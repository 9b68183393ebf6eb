package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

func TestJWTProvider_RoundTrip(t *testing.T) {
	p := NewJWTProvider("s3cret", 60)
	want := Principal{ID: uuid.New(), Role: models.RoleMitra}

	tok, err := p.Issue(want)
	require.NoError(t, err)

	got, err := p.Authenticate(tok)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJWTProvider_Rejects(t *testing.T) {
	p := NewJWTProvider("s3cret", 60)
	pr := Principal{ID: uuid.New(), Role: models.RoleUser}

	other, err := NewJWTProvider("different", 60).Issue(pr)
	require.NoError(t, err)

	expired := NewJWTProvider("s3cret", 60)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(pr)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: pr.ID.String(),
		Role:   "root",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	badUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "42",
		Role:   "user",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: pr.ID.String(),
		Role:   "admin",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": other,
		"expired":      old,
		"unknown role": badRole,
		"bad uid":      badUID,
		"alg none":     none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Authenticate(tok)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestPrincipal_CanActFor(t *testing.T) {
	self := uuid.New()
	user := Principal{ID: self, Role: models.RoleUser}
	admin := Principal{ID: uuid.New(), Role: models.RoleAdmin}

	assert.True(t, user.CanActFor(self))
	assert.False(t, user.CanActFor(uuid.New()))
	assert.True(t, admin.CanActFor(self))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("rahasia123")
	require.NoError(t, err)
	assert.NotEqual(t, "rahasia123", hash)
	assert.True(t, CheckPassword(hash, "rahasia123"))
	assert.False(t, CheckPassword(hash, "salah"))
}
