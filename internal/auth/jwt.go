package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/erazemk/zaloga/internal/model"
)

// Claims are the session token claims. The JTI doubles as the session key
// of the presentation adapter.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity returns the identity carried by the token.
func (c *Claims) Identity() model.Identity {
	return model.Identity{UID: c.UID, Email: c.Email}
}

// DefaultTokenTTL is used when no lifetime is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// GenerateToken issues a signed token for id, valid for ttl from now.
func GenerateToken(secret string, id model.Identity, now time.Time, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	claims := &Claims{
		UID:   id.UID,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   id.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken parses and validates a token, returning its claims.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
