package auth

import (
	"fmt"
	"time"

	"github.com/campuslive/campuslive/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload inside every JWT the account service issues.
//
// The realtime layer never issues tokens — that is the account
// service's job. It only verifies them: admission to a websocket is a
// capability check against a signed credential, not a client-asserted
// numeric id. GenerateToken below exists so tests and local tooling can
// mint credentials against the same claim shape.
//
// Why embed jwt.RegisteredClaims?
//   - It gives us standard JWT fields for free: ExpiresAt, IssuedAt,
//     Issuer. Tooling (jwt.io debugger) recognizes them.
//   - We add our custom fields (UserID, Name, Role) on top.
type Claims struct {
	UserID int64       `json:"user_id"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the immutable per-connection
// identity the realtime layer works with.
func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: c.UserID, Name: c.Name, Role: c.Role}
}

// GenerateToken creates a signed HS256 JWT for the given user.
func GenerateToken(userID int64, name string, role models.Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "campuslive",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a JWT string and extracts the claims.
//
// It verifies:
//  1. The signature matches our secret (not tampered with).
//  2. The token hasn't expired.
//  3. The signing method is HMAC — a token signed with "none" or RSA is
//     rejected before signature verification, closing the classic JWT
//     algorithm-confusion attack.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("token carries no usable user id")
	}

	return claims, nil
}
