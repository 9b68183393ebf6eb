package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/models"
)

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider issues and verifies HS256 tokens.
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTProvider(secret string, expiresMin int) *JWTProvider {
	return &JWTProvider{
		secret: []byte(secret),
		ttl:    time.Duration(expiresMin) * time.Minute,
		now:    time.Now,
	}
}

func (p *JWTProvider) Issue(pr Principal) (string, error) {
	now := p.now()
	claims := Claims{
		UserID: pr.ID.String(),
		Role:   string(pr.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   pr.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.secret)
}

func (p *JWTProvider) Authenticate(tokenStr string) (Principal, error) {
	claims := &Claims{}
	keyFunc := func(*jwt.Token) (interface{}, error) { return p.secret, nil }
	token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(strings.TrimSpace(claims.UserID))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: bad uid", ErrInvalidToken)
	}
	role := models.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	if !role.Valid() {
		return Principal{}, fmt.Errorf("%w: bad role", ErrInvalidToken)
	}
	return Principal{ID: id, Role: role}, nil
}
