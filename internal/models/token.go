package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the bearer-token claims accepted on scheduling routes. Tokens
// are issued by the platform's auth service; this API only validates them.
type JWTClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
