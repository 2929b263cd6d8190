package auth

import (
	"errors"
	"fmt"
	"qrattend/entity"
	"qrattend/lib/apperr"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	MemberId string      `json:"id"`
	Role     entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens mints and verifies HS256 credentials. Every token gets a random
// jti so two logins within the same second still differ.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (t *Tokens) Issue(member *entity.Member) (string, error) {
	now := t.now()
	claims := Claims{
		MemberId: member.Id,
		Role:     member.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   member.Id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks signature and expiry. Expired tokens return
// apperr.ErrTokenExpired, anything else malformed apperr.ErrUnauthenticated.
func (t *Tokens) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.ErrTokenExpired
		}
		return nil, apperr.ErrUnauthenticated
	}
	if !parsed.Valid || claims.MemberId == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return claims, nil
}
