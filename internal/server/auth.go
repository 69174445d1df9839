package server

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is the lifetime of an issued API token.
const tokenTTL = 24 * time.Hour

// ErrBadSecret indicates the presented shared secret did not match.
var ErrBadSecret = errors.New("invalid shared secret")

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth mints and validates API tokens from a shared secret.
type Auth struct {
	secret []byte
}

// NewAuth creates an Auth using secret as both the exchange credential and
// the HS256 signing key.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Exchange validates the presented shared secret and mints a token.
func (a *Auth) Exchange(presented string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(presented), a.secret) != 1 {
		return "", ErrBadSecret
	}

	claims := &Claims{
		Role: "client",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate parses and verifies a token string.
func (a *Auth) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}
