package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the token failed verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Resolver turns a bearer token into a stable principal id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// JWTResolver verifies HS256 tokens issued by the identity provider.
type JWTResolver struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewJWTResolver constructs a JWTResolver. An empty issuer disables the issuer check.
func NewJWTResolver(secret, issuer string) (*JWTResolver, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret required")
	}
	return &JWTResolver{secret: []byte(secret), issuer: issuer, leeway: 5 * time.Second}, nil
}

// Resolve verifies the token and returns its subject.
func (r *JWTResolver) Resolve(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(r.leeway),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return subject, nil
}

var _ Resolver = (*JWTResolver)(nil)
