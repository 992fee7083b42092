package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for internally issued session
// tokens. Stateless, so expiry is the only natural death.
const DefaultSessionTTL = 24 * time.Hour

// SessionClaims are the claims carried by internally issued session tokens.
// Deliberately minimal: subject id and role, plus the registered timestamps.
// The role claim is advisory only; the authorization guard re-reads the
// identity record on every request to catch role changes and deletions.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Role the subject held at issue time ("farmer", "expert", "admin").
	Role string `json:"role,omitempty"`
}

// NewSessionClaims builds minimally-correct session claims.
func NewSessionClaims(subject, role, issuer string, ttl time.Duration, now time.Time) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Role: role,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *SessionClaims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *SessionClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}
