package identity

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/nazeru/storefront-go/internal/domain"
)

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (m *TokenManager) Issue(u *User) (string, error) {
	claims := Claims{
		UserID: u.ID.String(),
		Role:   string(u.Role),
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(m.ttl).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses a bearer token into the caller capability. Every
// failure collapses into one unauthorized error.
func (m *TokenManager) Verify(tokenStr string) (Capability, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.Unauthorized("invalid token")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Capability{}, domain.Unauthorized("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Capability{}, domain.Unauthorized("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Capability{}, domain.Unauthorized("invalid or expired token")
	}
	return Capability{UserID: userID, Role: Role(claims.Role)}, nil
}
