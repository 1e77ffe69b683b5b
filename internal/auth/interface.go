package auth

import (
	"time"

	"edms/internal/domain/models"
)

// JWTVerifier defines the interface for JWT token verification.
// This abstraction keeps the middleware agnostic to where tokens come from.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns ErrUnauthorized if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.Claims, error)

	// Close releases any resources held by the verifier (e.g., HTTP connections for JWKS).
	Close() error
}

// TokenIssuer issues access tokens for authenticated users
type TokenIssuer interface {
	Issue(user *models.User) (token string, expiresAt time.Time, err error)
}
