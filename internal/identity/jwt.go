// Package identity verifies bearer tokens minted by the identity provider
// and turns them into subject claims for admin callers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Scope string `json:"scope,omitempty"`
	jwtlib.RegisteredClaims
}

// JWTVerifier checks HMAC-signed tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*domain.Subject, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.issuer))
	}

	var c claims
	parsed, err := jwtlib.ParseWithClaims(token, &c, func(*jwtlib.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &domain.Subject{
		ID:     c.Subject,
		Issuer: c.Issuer,
		Scopes: strings.Fields(c.Scope),
	}, nil
}

// Sign mints a token the verifier accepts. Used by local tooling and tests;
// production tokens come from the identity provider.
func (v *JWTVerifier) Sign(subject string, ttl time.Duration, scopes ...string) (string, error) {
	now := time.Now()
	c := claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(v.secret)
}
