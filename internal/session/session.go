package session

import (
	"time"
)

// Provenance records how a session's tokens were acquired. Informational
// only; no behavior depends on it except that manual tokens carry no
// refresh token.
type Provenance string

const (
	ViaCredentials       Provenance = "credentials"
	ViaClientCredentials Provenance = "client_credentials"
	ViaDirectToken       Provenance = "direct_token"
	ViaOAuthCode         Provenance = "oauth_code"
	ViaRefresh           Provenance = "refresh"
)

// Session is the single persisted authentication record. At most one
// session exists at a time; a successful login overwrites the previous one
// atomically both in memory and on disk.
type Session struct {
	// AccessToken is the bearer token for API calls. Never empty in a
	// stored session.
	AccessToken string `json:"access_token"`

	// RefreshToken mints new access tokens without re-prompting
	// credentials. Empty for manually supplied tokens.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the absolute expiry of AccessToken, derived from the
	// server-reported lifetime at issuance.
	ExpiresAt time.Time `json:"expires_at"`

	// RefreshExpiresAt is the absolute expiry of RefreshToken. Zero when
	// the provider did not report one.
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`

	// Subject is an identifying claim (email or username), display only.
	Subject string `json:"subject,omitempty"`

	// AcquiredVia records the grant that produced this session.
	AcquiredVia Provenance `json:"acquired_via,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// CreatedAt is when the session was stored.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// AuthStatus classifies a session's freshness. Derived on demand from the
// session and the current time; never persisted.
type AuthStatus string

const (
	// StatusUnauthenticated means no session exists.
	StatusUnauthenticated AuthStatus = "unauthenticated"

	// StatusValid means the access token is usable beyond the safety margin.
	StatusValid AuthStatus = "valid"

	// StatusExpiringSoon means the access token expires within the safety
	// margin; the next EnsureValid call will refresh it.
	StatusExpiringSoon AuthStatus = "expiring_soon"

	// StatusExpiredRefreshable means the access token has expired but a
	// usable refresh token exists.
	StatusExpiredRefreshable AuthStatus = "expired_refreshable"

	// StatusExpiredUnrefreshable means the access token has expired and no
	// usable refresh token exists; re-authentication is required.
	StatusExpiredUnrefreshable AuthStatus = "expired_unrefreshable"
)

// accessTokenFresh reports whether the access token is usable at now with
// the given safety margin.
func (s *Session) accessTokenFresh(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		// No expiry reported: treat as non-expiring (manual tokens without
		// an exp claim).
		return true
	}
	return now.Add(margin).Before(s.ExpiresAt)
}

// refreshTokenUsable reports whether a refresh is worth attempting at now.
func (s *Session) refreshTokenUsable(now time.Time) bool {
	if s.RefreshToken == "" {
		return false
	}
	if s.RefreshExpiresAt.IsZero() {
		return true
	}
	return now.Before(s.RefreshExpiresAt)
}

// statusAt derives the AuthStatus for the session at now.
func (s *Session) statusAt(now time.Time, margin time.Duration) AuthStatus {
	if s == nil || s.AccessToken == "" {
		return StatusUnauthenticated
	}

	if s.accessTokenFresh(now, margin) {
		return StatusValid
	}

	// Inside the margin but not yet past the actual expiry.
	if !s.ExpiresAt.IsZero() && now.Before(s.ExpiresAt) {
		return StatusExpiringSoon
	}

	if s.refreshTokenUsable(now) {
		return StatusExpiredRefreshable
	}
	return StatusExpiredUnrefreshable
}
