package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates access tokens issued by the identity
// provider. The provider signs with HS256 using a shared secret; this
// service only ever verifies, it never mints tokens of its own.
type TokenVerifier struct {
	Secret []byte
	Leeway time.Duration
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{Secret: []byte(secret), Leeway: 30 * time.Second}
}

// AccessClaims is the subset of provider claims this service reads.
// Subject carries the provider user id.
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Parse verifies the signature and expiry and returns the claims.
func (v *TokenVerifier) Parse(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	}, jwt.WithLeeway(v.Leeway))
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
