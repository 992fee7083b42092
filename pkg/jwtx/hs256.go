// Package jwtx issues and verifies the service's internal session tokens.
// These are HMAC-signed (HS256) with a server-held secret; the asymmetric
// OIDC path for externally issued tokens lives in pkg/oidcx.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrEmptySecret = errors.New("jwtx: signing secret must not be empty")
)

// HS256 signs and verifies session tokens with a shared secret.
type HS256 struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewHS256 creates a signer/verifier for internal session tokens.
// A zero ttl falls back to DefaultSessionTTL.
func NewHS256(secret []byte, issuer string, ttl time.Duration) (*HS256, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &HS256{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// TTL reports the configured token lifetime.
func (h *HS256) TTL() time.Duration { return h.ttl }

// Issue mints a signed session token for the given subject and role.
func (h *HS256) Issue(subject, role string) (string, error) {
	return h.IssueAt(subject, role, time.Now().UTC())
}

// IssueAt is Issue with an explicit issue time, for tests.
func (h *HS256) IssueAt(subject, role string, now time.Time) (string, error) {
	claims := NewSessionClaims(subject, role, h.issuer, h.ttl, now)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify validates the token string and returns its parsed claims.
// Signature first, then expiry, then issuer; no partial trust.
func (h *HS256) Verify(tokenStr string) (SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return SessionClaims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return SessionClaims{}, ErrMalformed
		default:
			return SessionClaims{}, fmt.Errorf("%w: %w", ErrInvalidSig, err)
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return SessionClaims{}, ErrMalformed
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return SessionClaims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return SessionClaims{}, err
	}

	return *claims, nil
}
