package keycloak

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims holds the identity and expiry claims extracted from a JWT
// access token. Claims are read without signature verification: the server
// never trusts them for authorization, only for display and local expiry
// bookkeeping. The provider remains the authority on token validity.
type TokenClaims struct {
	// Subject is the unique user identifier (sub claim).
	Subject string

	// Email is the user's email address, if present.
	Email string

	// PreferredUsername is the Keycloak preferred_username claim, if present.
	PreferredUsername string

	// ExpiresAt is the token expiry (exp claim). Zero if absent.
	ExpiresAt time.Time
}

// DisplayName returns the best identifying claim for display purposes.
func (c *TokenClaims) DisplayName() string {
	switch {
	case c.Email != "":
		return c.Email
	case c.PreferredUsername != "":
		return c.PreferredUsername
	default:
		return c.Subject
	}
}

type rawClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the payload of a JWT without verifying its signature.
// Returns an error for tokens that are not structurally valid JWTs.
func ParseClaims(rawToken string) (*TokenClaims, error) {
	parser := jwt.NewParser()

	var claims rawClaims
	if _, _, err := parser.ParseUnverified(rawToken, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode token claims: %w", err)
	}

	result := &TokenClaims{
		Subject:           claims.Subject,
		Email:             claims.Email,
		PreferredUsername: claims.PreferredUsername,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}
