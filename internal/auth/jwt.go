// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package auth issues and validates the HMAC-signed JWTs guarding the
// admin API. Tokens are stateless; revocation before expiry is not
// supported.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles embedded in token claims.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// minSecretLength is the shortest accepted signing secret.
const minSecretLength = 32

// DefaultTokenTTL is the token lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrInvalidToken covers signature, structure, and expiry failures.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrWeakSecret is returned for secrets under the minimum length.
	ErrWeakSecret = fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLength)
)

// Claims carries the subject and role for authorization decisions.
type Claims struct {
	Subject string `json:"sub_name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Manager creates and validates tokens with HMAC-SHA256.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager builds a token manager. The secret must be 32+ characters;
// a zero ttl falls back to DefaultTokenTTL.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl}, nil
}

// Generate signs a token for the given subject and role.
func (m *Manager) Generate(subject, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, returning its claims. Only HS256
// is accepted; algorithm-substitution tokens are rejected.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
