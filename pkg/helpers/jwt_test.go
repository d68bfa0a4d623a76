package helpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims AccessClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestTokenVerifierParse(t *testing.T) {
	v := NewTokenVerifier("shared-secret")
	raw := signToken(t, "shared-secret", AccessClaims{
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenVerifierRejectsWrongSecret(t *testing.T) {
	v := NewTokenVerifier("shared-secret")
	raw := signToken(t, "other-secret", AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := v.Parse(raw); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
}

func TestTokenVerifierRejectsExpired(t *testing.T) {
	v := NewTokenVerifier("shared-secret")
	raw := signToken(t, "shared-secret", AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	if _, err := v.Parse(raw); err == nil {
		t.Fatal("expired token must be rejected")
	}
}
