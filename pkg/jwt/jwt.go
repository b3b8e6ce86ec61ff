// Package jwt resolves the acting identity the API layer hands to the core.
// Token issuance lives in the external auth service; this package only
// validates tokens and extracts the actor claims.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Actor roles
const (
	RoleOperator = "operator"
	RoleClient   = "client"
)

// Claims represents the acting-identity claims carried by a token.
type Claims struct {
	ActorID string `json:"actor_id"` // client id, or operator account id
	Role    string `json:"role"`     // operator, client
	jwt.RegisteredClaims
}

// Manager validates and (for tooling) issues identity tokens.
type Manager struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewManager creates a new token manager.
func NewManager(secretKey string, tokenTTL time.Duration) *Manager {
	return &Manager{secretKey: secretKey, tokenTTL: tokenTTL}
}

// Generate issues a token for an actor. Used by operator tooling and tests;
// production tokens come from the external auth layer with the same secret.
func (m *Manager) Generate(actorID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		ActorID: actorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Validate checks a token and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != RoleOperator && claims.Role != RoleClient {
		return nil, errors.New("unknown actor role")
	}
	return claims, nil
}
