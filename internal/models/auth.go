package models

import "github.com/golang-jwt/jwt/v5"

// RegisterRequest holds the payload for creating an account.
type RegisterRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	FullName string   `json:"full_name" validate:"required"`
	Role     UserRole `json:"role" validate:"omitempty"`
}

// LoginRequest holds credentials for authenticating a user. The form field
// names follow the OAuth2 password flow the original clients already speak.
type LoginRequest struct {
	Email    string `form:"username" json:"username" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

// LoginResponse returns the issued bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// JWTClaims represents the JWT payload for access tokens. The subject carries
// the user email; the user record is re-resolved on every request.
type JWTClaims struct {
	jwt.RegisteredClaims
}
