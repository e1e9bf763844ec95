package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the JWT claims the resolver reads. Roles and permissions are
// never taken from the token; only the subject identifies the principal.
type Claims struct {
	jwt.RegisteredClaims
}
