package oidcx_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/agrolink/agrolink/pkg/oidcx"
)

const testKID = "test-key"

// jwksServer serves a JWKS document for the given RSA public key.
func jwksServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	})
	return httptest.NewServer(mux)
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestVerify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := jwksServer(t, &key.PublicKey)
	t.Cleanup(srv.Close)

	newValidator := func(t *testing.T, audience string) *oidcx.Validator {
		v, err := oidcx.New(context.Background(), oidcx.Config{
			IssuerURL:  srv.URL,
			Audience:   audience,
			Production: true,
		}, discard())
		require.NoError(t, err)
		require.False(t, v.Bypassed())
		return v
	}

	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":                srv.URL,
			"sub":                "user-123",
			"aud":                "agrolink",
			"exp":                time.Now().Add(time.Hour).Unix(),
			"iat":                time.Now().Unix(),
			"email":              "farmer@example.org",
			"preferred_username": "farmer1",
			"name":               "Farm Er",
		}
	}

	t.Run("valid token", func(t *testing.T) {
		v := newValidator(t, "agrolink")
		claims, err := v.Verify(context.Background(), signToken(t, key, testKID, baseClaims()))
		require.NoError(t, err)
		require.Equal(t, "user-123", claims.Subject)
		require.Equal(t, "farmer@example.org", claims.Email)
		require.Equal(t, "farmer1", claims.Username())
	})

	t.Run("expired token", func(t *testing.T) {
		v := newValidator(t, "agrolink")
		c := baseClaims()
		c["exp"] = time.Now().Add(-time.Hour).Unix()

		_, err := v.Verify(context.Background(), signToken(t, key, testKID, c))
		require.ErrorIs(t, err, oidcx.ErrInvalidToken)
	})

	t.Run("audience mismatch", func(t *testing.T) {
		v := newValidator(t, "some-other-app")
		_, err := v.Verify(context.Background(), signToken(t, key, testKID, baseClaims()))
		require.ErrorIs(t, err, oidcx.ErrInvalidToken)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		v := newValidator(t, "agrolink")
		c := baseClaims()
		c["iss"] = "https://rogue.test"

		_, err := v.Verify(context.Background(), signToken(t, key, testKID, c))
		require.ErrorIs(t, err, oidcx.ErrInvalidToken)
	})

	t.Run("unknown key id", func(t *testing.T) {
		v := newValidator(t, "agrolink")
		_, err := v.Verify(context.Background(), signToken(t, key, "rotated-away", baseClaims()))
		require.ErrorIs(t, err, oidcx.ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		v := newValidator(t, "agrolink")
		_, err = v.Verify(context.Background(), signToken(t, otherKey, testKID, baseClaims()))
		require.ErrorIs(t, err, oidcx.ErrInvalidToken)
	})

	t.Run("verified claims served from cache", func(t *testing.T) {
		localKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		localSrv := jwksServer(t, &localKey.PublicKey)

		v, err := oidcx.New(context.Background(), oidcx.Config{
			IssuerURL:  localSrv.URL,
			Production: true,
		}, discard())
		require.NoError(t, err)

		c := baseClaims()
		c["iss"] = localSrv.URL
		token := signToken(t, localKey, testKID, c)

		first, err := v.Verify(context.Background(), token)
		require.NoError(t, err)

		// With the issuer gone, only the cache can answer.
		localSrv.Close()

		second, err := v.Verify(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, first.Subject, second.Subject)
	})
}

func TestPlaceholderIssuer(t *testing.T) {
	t.Run("production refuses placeholder", func(t *testing.T) {
		_, err := oidcx.New(context.Background(), oidcx.Config{
			IssuerURL:  "https://auth.example.com",
			Production: true,
		}, discard())
		require.ErrorIs(t, err, oidcx.ErrNotConfigured)
	})

	t.Run("production refuses empty issuer", func(t *testing.T) {
		_, err := oidcx.New(context.Background(), oidcx.Config{Production: true}, discard())
		require.ErrorIs(t, err, oidcx.ErrNotConfigured)
	})

	t.Run("development bypasses with mock identity", func(t *testing.T) {
		v, err := oidcx.New(context.Background(), oidcx.Config{}, discard())
		require.NoError(t, err)
		require.True(t, v.Bypassed())

		claims, err := v.Verify(context.Background(), "any-token-at-all")
		require.NoError(t, err)
		require.Equal(t, "dev-user-123", claims.Subject)
		require.Equal(t, "dev@example.com", claims.Email)
	})
}

func TestEndSessionURL(t *testing.T) {
	t.Run("real issuer", func(t *testing.T) {
		got := oidcx.EndSessionURL("https://id.agrolink.dev/", "http://localhost:3000/bye")
		require.Equal(t,
			"https://id.agrolink.dev/oauth2/logout?post_logout_redirect_uri=http%3A%2F%2Flocalhost%3A3000%2Fbye",
			got)
	})

	t.Run("placeholder issuer yields empty", func(t *testing.T) {
		require.Empty(t, oidcx.EndSessionURL("", "http://localhost:3000"))
		require.Empty(t, oidcx.EndSessionURL("https://auth.example.com", "x"))
	})
}
