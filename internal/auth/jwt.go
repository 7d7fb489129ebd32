// Package auth verifies and issues the identity tokens the API trusts.
// Accounts and login live outside this service; a caller arrives with a
// token already carrying its verified email and role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sitecrew/chat-api/internal/normalize"
)

// JWTManager signs and validates the JWT tokens used by the API. It holds
// one or more HMAC keys keyed by kid so signing keys can be rotated without
// invalidating previously-issued tokens.
type JWTManager struct {
	keys      map[string]string
	activeKid string
	duration  time.Duration
}

// Claims is the token payload: the caller's normalized email and
// marketplace role.
type Claims struct {
	Email                string `json:"email"`
	Role                 string `json:"role"`
	jwt.RegisteredClaims `json:",inline"`
}

// NewJWTManager returns a manager with a single unnamed key.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{"": secretKey}, "", duration)
}

// NewJWTManagerFromKeys returns a manager holding the given kid -> secret
// map. Tokens are signed with the active kid; verification accepts any
// known kid so tokens signed before a rotation keep working.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:      keys,
		activeKid: activeKid,
		duration:  duration,
	}
}

// GenerateToken issues a signed token for a user identity.
func (m *JWTManager) GenerateToken(email, role string) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("no signing key for active kid %q", m.activeKid)
	}

	expiresAt := time.Now().Add(m.duration)
	claims := &Claims{
		Email: normalize.Email(email),
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid := ""
		if v, ok := token.Header["kid"].(string); ok {
			kid = v
		}
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown signing key id %q", kid)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	// Tokens may have been minted by older issuers that did not normalize.
	claims.Email = normalize.Email(claims.Email)
	return claims, nil
}
