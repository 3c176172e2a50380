// Package auth verifies the token the host presents in core.connector.auth.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Validator kinds accepted by New.
const (
	KindPlain  = "plain"
	KindBcrypt = "bcrypt"
	KindJWT    = "jwt"
)

const jwtIssuer = "connector"

var ErrEmptySecret = errors.New("token validator secret is empty")

type TokenValidator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// New builds the validator of the given kind. For plain the secret is the
// token itself, for bcrypt its hash and for jwt the HS256 signing key.
func New(kind, secret string) (TokenValidator, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	switch kind {
	case KindPlain, "":
		return NewPlain(secret), nil
	case KindBcrypt:
		return NewBcrypt(secret)
	case KindJWT:
		return NewJWT(secret), nil
	}
	return nil, fmt.Errorf("unknown token validator %q", kind)
}

type Plain struct {
	token []byte
}

func NewPlain(token string) *Plain {
	return &Plain{token: []byte(token)}
}

func (p *Plain) Validate(_ context.Context, token string) (bool, error) {
	return subtle.ConstantTimeCompare(p.token, []byte(token)) == 1, nil
}

type Bcrypt struct {
	hash []byte
}

func NewBcrypt(hash string) (*Bcrypt, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("bcrypt token hash: %w", err)
	}
	return &Bcrypt{hash: []byte(hash)}, nil
}

func (b *Bcrypt) Validate(_ context.Context, token string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(b.hash, []byte(token))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}

// HashToken returns the bcrypt hash to configure for a token.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(h), err
}

// JWT accepts HS256 tokens signed with the shared key and issued for the connector.
type JWT struct {
	key []byte
}

func NewJWT(key string) *JWT {
	return &JWT{key: []byte(key)}
}

func (j *JWT) Validate(_ context.Context, token string) (bool, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.key, nil
	}, jwt.WithIssuer(jwtIssuer), jwt.WithExpirationRequired())
	if err != nil {
		// a bad token is a failed authentication, not a server fault
		return false, nil
	}
	return parsed.Valid, nil
}

// Issue signs a token the JWT validator accepts.
func (j *JWT) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    jwtIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
}
