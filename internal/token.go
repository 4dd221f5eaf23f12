package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for page tokens that fail verification
var ErrInvalidToken = errors.New("invalid page token")

// Tokens signs and verifies the handle a page uses to reach its form
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens builds a signer. An empty secret is replaced by a random one,
// so tokens only survive as long as the process.
func NewTokens(secret string) (*Tokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate page token secret: %w", err)
		}
	}
	return &Tokens{secret: key, now: time.Now}, nil
}

// Issue returns a signed token naming formID
func (t *Tokens) Issue(formID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  formID,
		IssuedAt: jwt.NewNumericDate(t.now()),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign page token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and returns the form id
func (t *Tokens) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
