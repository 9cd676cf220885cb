package keycloak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ontomcp/pkg/logging"
)

// DefaultHTTPTimeout bounds every identity-provider request. Calls that
// exceed it fail with a transport error rather than hanging.
const DefaultHTTPTimeout = 15 * time.Second

// ErrInvalidGrant is returned when the provider rejects the presented
// credentials, code, or refresh token (HTTP 400/401 with error
// "invalid_grant" or similar).
var ErrInvalidGrant = errors.New("invalid grant")

// Client talks to a Keycloak-style OIDC provider. It is stateless: every
// method issues a single HTTP request and returns the decoded response.
type Client struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// ClientOption configures the identity-provider client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new identity-provider client. clientSecret may be
// empty for public clients.
func NewClient(baseURL, realm, clientID, clientSecret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: DefaultHTTPTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ClientID returns the configured OAuth client id.
func (c *Client) ClientID() string {
	return c.clientID
}

// TokenEndpoint returns the provider's token endpoint URL.
func (c *Client) TokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

// AuthorizationEndpoint returns the provider's authorization endpoint URL.
func (c *Client) AuthorizationEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/auth", c.baseURL, c.realm)
}

// UserinfoEndpoint returns the provider's userinfo endpoint URL.
func (c *Client) UserinfoEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", c.baseURL, c.realm)
}

// RevocationEndpoint returns the provider's token revocation endpoint URL.
func (c *Client) RevocationEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/revoke", c.baseURL, c.realm)
}

// PasswordGrant authenticates with the resource owner password credentials
// grant. Invalid credentials yield ErrInvalidGrant.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*Token, error) {
	data := url.Values{
		"grant_type": {"password"},
		"client_id":  {c.clientID},
		"username":   {username},
		"password":   {password},
		"scope":      {DefaultScope},
	}
	c.addClientSecret(data)

	return c.doTokenRequest(ctx, data)
}

// ClientCredentialsGrant authenticates as the configured client itself.
// Requires a client secret.
func (c *Client) ClientCredentialsGrant(ctx context.Context) (*Token, error) {
	if c.clientSecret == "" {
		return nil, errors.New("client secret required for client credentials grant")
	}

	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {DefaultScope},
	}

	return c.doTokenRequest(ctx, data)
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {c.clientID},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	c.addClientSecret(data)

	return c.doTokenRequest(ctx, data)
}

// RefreshToken obtains a new access token using a refresh token. A rejected
// refresh token yields ErrInvalidGrant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}
	c.addClientSecret(data)

	return c.doTokenRequest(ctx, data)
}

// RevokeRefreshToken revokes a refresh token at the provider. Best effort:
// callers typically clear local state regardless of the outcome.
func (c *Client) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	data := url.Values{
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}
	c.addClientSecret(data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RevocationEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation request failed with status %d", resp.StatusCode)
	}

	return nil
}

// Userinfo fetches the OIDC userinfo claims for an access token. A 401/403
// response yields ErrInvalidGrant, which callers use to detect invalid or
// expired tokens.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserinfoEndpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("userinfo rejected token with status %d: %w", resp.StatusCode, ErrInvalidGrant)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}

	return &info, nil
}

// BuildAuthorizationURL constructs the authorization endpoint URL for the
// authorization-code flow.
func (c *Client) BuildAuthorizationURL(redirectURI, state string) (string, error) {
	authURL, err := url.Parse(c.AuthorizationEndpoint())
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	query := authURL.Query()
	query.Set("response_type", "code")
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)
	query.Set("scope", DefaultScope)

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// doTokenRequest performs a token endpoint request.
func (c *Client) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Debug("Keycloak", "Token request failed: status=%d grant=%s", resp.StatusCode, data.Get("grant_type"))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("token request rejected with status %d (%s): %w",
				resp.StatusCode, errorCodeFromBody(body), ErrInvalidGrant)
		}
		return nil, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	token.SetExpiriesFromLifetimes(time.Now())

	return &token, nil
}

func (c *Client) addClientSecret(data url.Values) {
	if c.clientSecret != "" {
		data.Set("client_secret", c.clientSecret)
	}
}

// errorCodeFromBody extracts the OAuth error code from a failed token
// response. Falls back to "unknown_error" if the body is not the standard
// error shape.
func errorCodeFromBody(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return "unknown_error"
	}
	return payload.Error
}
