package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"ontomcp/internal/keycloak"
	"ontomcp/pkg/logging"
)

// DefaultExpiryMargin is the safety margin applied when judging access
// token freshness. Tokens inside the margin are refreshed proactively to
// absorb clock skew and request latency.
const DefaultExpiryMargin = 30 * time.Second

// Manager owns the in-memory session and every expiry/refresh decision.
// Callers never inspect raw timestamps: EnsureValid is the single place
// where refresh semantics live. All session mutations are serialized
// through the manager, which also owns the only writer to the credential
// store.
type Manager struct {
	mu      sync.Mutex
	idp     *keycloak.Client
	store   *Store
	current *Session
	margin  time.Duration

	// refreshGroup deduplicates concurrent refresh attempts: two callers
	// that both see an expired token share one refresh-grant call instead
	// of invalidating each other's new refresh token.
	refreshGroup singleflight.Group
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithExpiryMargin overrides the expiry safety margin. The margin is an
// implementation knob, not a contract; tests use small values.
func WithExpiryMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = margin
	}
}

// NewManager creates a lifecycle manager backed by the given identity
// provider client and credential store. Any persisted session is loaded
// immediately; a corrupt or missing file starts the manager
// unauthenticated.
func NewManager(idp *keycloak.Client, store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		idp:    idp,
		store:  store,
		margin: DefaultExpiryMargin,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.current = store.Load()
	if m.current != nil {
		logging.Info("Session", "Restored persisted session (subject=%s, status=%s)",
			m.current.Subject, m.current.statusAt(time.Now(), m.margin))
	}

	return m
}

// LoginWithCredentials authenticates with the password grant and persists
// the resulting session, replacing any previous one.
func (m *Manager) LoginWithCredentials(ctx context.Context, username, password string) (*Session, error) {
	token, err := m.idp.PasswordGrant(ctx, username, password)
	if err != nil {
		if errors.Is(err, keycloak.ErrInvalidGrant) {
			return nil, NewAuthError(KindInvalidCredentials, err)
		}
		return nil, NewAuthError(KindTransport, err)
	}

	return m.adoptToken(token, ViaCredentials, username)
}

// LoginWithClientCredentials authenticates as the configured OAuth client
// itself. Requires a client secret in the configuration.
func (m *Manager) LoginWithClientCredentials(ctx context.Context) (*Session, error) {
	token, err := m.idp.ClientCredentialsGrant(ctx)
	if err != nil {
		if errors.Is(err, keycloak.ErrInvalidGrant) {
			return nil, NewAuthError(KindInvalidCredentials, err)
		}
		return nil, NewAuthError(KindTransport, err)
	}

	return m.adoptToken(token, ViaClientCredentials, m.idp.ClientID())
}

// LoginWithToken stores a manually supplied access token after validating
// it against the provider's userinfo endpoint. Manual tokens carry no
// refresh token and therefore cannot be refreshed.
func (m *Manager) LoginWithToken(ctx context.Context, rawToken string) (*Session, error) {
	claims, err := keycloak.ParseClaims(rawToken)
	if err != nil {
		return nil, NewAuthError(KindInvalidToken, err)
	}

	info, err := m.idp.Userinfo(ctx, rawToken)
	if err != nil {
		if errors.Is(err, keycloak.ErrInvalidGrant) {
			return nil, NewAuthError(KindInvalidToken, err)
		}
		return nil, NewAuthError(KindTransport, err)
	}

	sess := &Session{
		AccessToken: rawToken,
		ExpiresAt:   claims.ExpiresAt,
		Subject:     info.DisplayName(),
		AcquiredVia: ViaDirectToken,
		TokenType:   "Bearer",
		CreatedAt:   time.Now(),
	}

	return m.adoptSession(sess)
}

// BeginOAuth constructs the provider's authorization URL for the
// authorization-code flow. state must be a fresh random value generated by
// the caller (see cmd and server packages); the session is not mutated.
func (m *Manager) BeginOAuth(redirectURI, state string) (string, error) {
	return m.idp.BuildAuthorizationURL(redirectURI, state)
}

// CompleteOAuth exchanges an authorization code for tokens and persists the
// resulting session.
func (m *Manager) CompleteOAuth(ctx context.Context, code, redirectURI string) (*Session, error) {
	token, err := m.idp.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		if errors.Is(err, keycloak.ErrInvalidGrant) {
			return nil, NewAuthError(KindInvalidCredentials, err)
		}
		return nil, NewAuthError(KindTransport, err)
	}

	return m.adoptToken(token, ViaOAuthCode, "")
}

// EnsureValid returns an access token guaranteed fresh beyond the safety
// margin, refreshing at most once. With no session it fails with
// unauthenticated; with an unrefreshable expired session it clears the
// session and fails with reauth_required. This is the only operation
// callers use to obtain a token.
func (m *Manager) EnsureValid(ctx context.Context) (string, error) {
	m.mu.Lock()
	sess := m.current
	if sess == nil {
		m.mu.Unlock()
		return "", NewAuthError(KindUnauthenticated, nil)
	}

	now := time.Now()
	if sess.accessTokenFresh(now, m.margin) {
		token := sess.AccessToken
		m.mu.Unlock()
		return token, nil
	}

	if !sess.refreshTokenUsable(now) {
		m.clearLocked("expired session is not refreshable")
		m.mu.Unlock()
		return "", NewAuthError(KindReauthRequired, errors.New("session expired and cannot be refreshed"))
	}

	refreshToken := sess.RefreshToken
	m.mu.Unlock()

	return m.refresh(ctx, refreshToken)
}

// ForceRefresh discards the current access token and performs a refresh
// grant regardless of local expiry bookkeeping. The API client uses it when
// the platform rejects a token that EnsureValid judged valid. Concurrent
// forced and proactive refreshes for the same refresh token are coalesced.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	sess := m.current
	if sess == nil {
		m.mu.Unlock()
		return "", NewAuthError(KindUnauthenticated, nil)
	}
	if !sess.refreshTokenUsable(time.Now()) {
		m.clearLocked("server rejected token and session is not refreshable")
		m.mu.Unlock()
		return "", NewAuthError(KindReauthRequired, errors.New("token rejected by server and session cannot be refreshed"))
	}
	refreshToken := sess.RefreshToken
	m.mu.Unlock()

	return m.refresh(ctx, refreshToken)
}

// refresh performs a single refresh-grant call, deduplicated per refresh
// token, and installs the new session. Any failed refresh clears the
// session, network failures included: a session whose access token is
// already stale is not worth keeping on the chance the next refresh
// attempt fares better, and the caller has to re-authenticate either way.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (string, error) {
	result, err, shared := m.refreshGroup.Do(refreshToken, func() (interface{}, error) {
		token, err := m.idp.RefreshToken(ctx, refreshToken)
		if err != nil {
			m.mu.Lock()
			if errors.Is(err, keycloak.ErrInvalidGrant) {
				m.clearLocked("provider rejected refresh token")
			} else {
				m.clearLocked("refresh attempt failed")
			}
			m.mu.Unlock()
			return nil, NewAuthError(KindReauthRequired, err)
		}

		sess, err := m.adoptToken(token, ViaRefresh, "")
		if err != nil {
			return nil, err
		}
		return sess.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		logging.Debug("Session", "Refresh call coalesced with a concurrent caller")
	}

	return result.(string), nil
}

// Logout clears the session in memory and on disk. It always succeeds:
// refresh-token revocation at the provider is best effort and failures are
// only logged.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()

	if sess != nil && sess.RefreshToken != "" {
		if err := m.idp.RevokeRefreshToken(ctx, sess.RefreshToken); err != nil {
			logging.Warn("Session", "Token revocation failed (continuing logout): %v", err)
		}
	}

	if err := m.store.Clear(); err != nil {
		logging.Warn("Session", "Failed to remove token file: %v", err)
	}

	logging.Info("Session", "Logged out")
}

// Invalidate clears the session without contacting the provider. Used by
// the API client when the platform rejects a freshly refreshed token.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.clearLocked("session invalidated by caller")
	m.mu.Unlock()
}

// Info is the result of Status: a point-in-time, network-free view of the
// session.
type Info struct {
	Status           AuthStatus `json:"status"`
	Subject          string     `json:"subject,omitempty"`
	AcquiredVia      Provenance `json:"acquired_via,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at,omitempty"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at,omitempty"`
}

// Status derives the current AuthStatus. Pure read: no network call, no
// mutation.
func (m *Manager) Status() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.current
	info := Info{Status: sess.statusAt(time.Now(), m.margin)}
	if sess != nil {
		info.Subject = sess.Subject
		info.AcquiredVia = sess.AcquiredVia
		info.ExpiresAt = sess.ExpiresAt
		info.RefreshExpiresAt = sess.RefreshExpiresAt
	}
	return info
}

// Userinfo fetches fresh identity claims for the current session from the
// provider. Unlike Status this performs a network call.
func (m *Manager) Userinfo(ctx context.Context) (*keycloak.UserInfo, error) {
	token, err := m.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	info, err := m.idp.Userinfo(ctx, token)
	if err != nil {
		if errors.Is(err, keycloak.ErrInvalidGrant) {
			return nil, NewAuthError(KindReauthRequired, err)
		}
		return nil, NewAuthError(KindTransport, err)
	}
	return info, nil
}

// OAuth2Token returns the current session in the standard
// golang.org/x/oauth2 token shape, refreshing it first if needed. Backs
// `onto-mcp auth export` so curl scripts and other x/oauth2 consumers can
// reuse the session without parsing the obfuscated store format.
func (m *Manager) OAuth2Token(ctx context.Context) (*oauth2.Token, error) {
	if _, err := m.EnsureValid(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.current
	if sess == nil {
		return nil, NewAuthError(KindUnauthenticated, nil)
	}

	token := &keycloak.Token{
		AccessToken:  sess.AccessToken,
		TokenType:    sess.TokenType,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	}
	return token.ToOAuth2Token(), nil
}

// Reload replaces the in-memory session with whatever the credential store
// currently holds. The token-file watcher calls this when another process
// (e.g. the CLI login command) rewrites the file.
func (m *Manager) Reload() {
	sess := m.store.Load()

	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	if sess != nil {
		logging.Info("Session", "Reloaded session from disk (subject=%s)", sess.Subject)
	} else {
		logging.Info("Session", "Session file removed externally, now unauthenticated")
	}
}

// StorePath returns the path of the persisted session file.
func (m *Manager) StorePath() string {
	return m.store.Path()
}

// adoptToken builds a session from a token-endpoint response and installs
// it. subjectHint is used when the token carries no identifying claim.
func (m *Manager) adoptToken(token *keycloak.Token, via Provenance, subjectHint string) (*Session, error) {
	subject := subjectHint
	if claims, err := keycloak.ParseClaims(token.AccessToken); err == nil && claims.DisplayName() != "" {
		subject = claims.DisplayName()
	}

	sess := &Session{
		AccessToken:      token.AccessToken,
		RefreshToken:     token.RefreshToken,
		ExpiresAt:        token.ExpiresAt,
		RefreshExpiresAt: token.RefreshExpiresAt,
		Subject:          subject,
		AcquiredVia:      via,
		TokenType:        token.TokenType,
		CreatedAt:        time.Now(),
	}

	if via == ViaRefresh {
		// A refresh replaces tokens in place; keep the original provenance
		// subject if the refreshed token has no claim.
		m.mu.Lock()
		if sess.Subject == "" && m.current != nil {
			sess.Subject = m.current.Subject
		}
		m.mu.Unlock()
	}

	return m.adoptSession(sess)
}

// adoptSession installs a new session in memory and persists it. The store
// write is atomic, so the previous session file is replaced wholesale.
func (m *Manager) adoptSession(sess *Session) (*Session, error) {
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	if err := m.store.Save(sess); err != nil {
		return nil, fmt.Errorf("session active but not persisted: %w", err)
	}

	logging.Info("Session", "Session established (subject=%s, via=%s, expires=%s)",
		sess.Subject, sess.AcquiredVia, sess.ExpiresAt.Format(time.RFC3339))

	return sess, nil
}

// clearLocked drops the in-memory session and removes the persisted file.
// Caller must hold m.mu.
func (m *Manager) clearLocked(reason string) {
	if m.current == nil {
		return
	}
	m.current = nil
	if err := m.store.Clear(); err != nil {
		logging.Warn("Session", "Failed to remove token file: %v", err)
	}
	logging.Info("Session", "Session cleared: %s", reason)
}
