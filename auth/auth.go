// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidSecret = errors.New("invalid shared secret")
)

// Identity is the caller behind a request.
type Identity struct {
	Username  string
	Moderator bool
}

// claims carries the username in sub and the moderator flag in mod.
type claims struct {
	jwt.RegisteredClaims
	Moderator bool `json:"mod,omitempty"`
}

// Resolver verifies HS256 bearer tokens.
type Resolver struct {
	secret []byte
	now    func() time.Time
}

func NewResolver(secret string, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{secret: []byte(secret), now: now}
}

// Resolve reads the Authorization header and returns the verified identity.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Identity{}, ErrMissingToken
	}
	return r.Verify(strings.TrimSpace(token))
}

// Verify parses token and checks its signature and expiry.
func (r *Resolver) Verify(token string) (Identity, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	username := strings.TrimSpace(parsed.Subject)
	if username == "" {
		return Identity{}, fmt.Errorf("%w: sub is required", ErrInvalidToken)
	}
	return Identity{Username: username, Moderator: parsed.Moderator}, nil
}

// Issue signs a token for id valid for ttl. Used by the CLI and tests.
func (r *Resolver) Issue(id Identity, ttl time.Duration) (string, error) {
	now := r.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Moderator: id.Moderator,
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateSecret compares a shared secret in constant time. An empty
// expected secret rejects everything.
func ValidateSecret(provided, expected string) error {
	if expected == "" || !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrInvalidSecret
	}
	return nil
}
