package keycloak

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultScope is requested on every interactive grant so the provider
// returns identity claims alongside the access token.
const DefaultScope = "openid profile email"

// Token represents a token-endpoint response with associated metadata.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the access token lifetime in seconds as reported by the
	// provider.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshExpiresIn is the refresh token lifetime in seconds. Keycloak
	// reports this alongside expires_in.
	RefreshExpiresIn int `json:"refresh_expires_in,omitempty"`

	// ExpiresAt is the calculated absolute expiry of the access token.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// RefreshExpiresAt is the calculated absolute expiry of the refresh token.
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`
}

// SetExpiriesFromLifetimes calculates the absolute expiry timestamps from
// the server-reported lifetimes. Expiry is always derived from the server
// response at issuance time, never defaulted.
func (t *Token) SetExpiriesFromLifetimes(now time.Time) {
	if t.ExpiresIn > 0 && t.ExpiresAt.IsZero() {
		t.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.RefreshExpiresIn > 0 && t.RefreshExpiresAt.IsZero() {
		t.RefreshExpiresAt = now.Add(time.Duration(t.RefreshExpiresIn) * time.Second)
	}
}

// ToOAuth2Token converts the Token to an oauth2.Token for compatibility
// with golang.org/x/oauth2 consumers.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}

// UserInfo holds the subset of OIDC userinfo claims the server displays.
type UserInfo struct {
	Subject           string `json:"sub"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// DisplayName returns the best identifying claim for display purposes.
func (u *UserInfo) DisplayName() string {
	switch {
	case u.Email != "":
		return u.Email
	case u.PreferredUsername != "":
		return u.PreferredUsername
	case u.Name != "":
		return u.Name
	default:
		return u.Subject
	}
}
