package models

import "github.com/golang-jwt/jwt/v5"

// Claims defines the structure of the JWT claims issued by the platform's
// auth service. This service only reads them; it never issues tokens.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
