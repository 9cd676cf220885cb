package onto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ontomcp/internal/session"
	"ontomcp/pkg/logging"
)

// DefaultHTTPTimeout bounds every platform API request.
const DefaultHTTPTimeout = 15 * time.Second

// maxErrorBodySnippet limits how much of a failure response body is quoted
// in error messages.
const maxErrorBodySnippet = 200

// TokenProvider supplies bearer tokens for platform API calls. Implemented
// by *session.Manager. The client never inspects token expiry itself;
// EnsureValid owns that decision.
type TokenProvider interface {
	// EnsureValid returns a fresh access token, refreshing if needed.
	EnsureValid(ctx context.Context) (string, error)

	// ForceRefresh discards the current access token and refreshes
	// unconditionally. Called after the platform rejected a token that
	// EnsureValid judged valid.
	ForceRefresh(ctx context.Context) (string, error)

	// Invalidate clears the session locally after a refreshed token was
	// also rejected.
	Invalidate()
}

// Client is a stateless executor of platform API requests. Every call
// obtains its token through the TokenProvider and carries no caching or
// deduplication; each call is independent.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

// ClientOption configures the platform API client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a platform API client rooted at baseURL.
func NewClient(baseURL string, tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListRealms returns the realms (spaces) visible to the authenticated user.
func (c *Client) ListRealms(ctx context.Context) ([]Realm, error) {
	var realms []Realm
	if err := c.getJSON(ctx, "/realm", nil, &realms); err != nil {
		return nil, err
	}
	return realms, nil
}

// SearchTemplates searches object templates, aggregating pages in arrival
// order until the page bound or a short page.
func (c *Client) SearchTemplates(ctx context.Context, opts SearchOptions) ([]Template, error) {
	var all []Template
	err := c.paginate(ctx, "/template", opts, func(query url.Values) (int, error) {
		var page []Template
		if err := c.getJSON(ctx, "/template", query, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// SearchObjects searches object instances with the same pagination
// behavior as SearchTemplates.
func (c *Client) SearchObjects(ctx context.Context, opts SearchOptions) ([]Object, error) {
	var all []Object
	err := c.paginate(ctx, "/object", opts, func(query url.Values) (int, error) {
		var page []Object
		if err := c.getJSON(ctx, "/object", query, &page); err != nil {
			return 0, err
		}
		all = append(all, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// paginate drives page-by-page fetching. fetch receives the query for one
// page and reports how many results that page held; a page shorter than
// the requested page size signals end of data.
func (c *Client) paginate(ctx context.Context, path string, opts SearchOptions, fetch func(url.Values) (int, error)) error {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := opts.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}

	for page := 1; ; page++ {
		query := url.Values{}
		if opts.Query != "" {
			query.Set("q", opts.Query)
		}
		if opts.RealmID != "" {
			query.Set("realmId", opts.RealmID)
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("pageSize", strconv.Itoa(pageSize))

		n, err := fetch(query)
		if err != nil {
			return err
		}

		if n < pageSize {
			return nil // short page: end of data
		}
		if maxPages > 0 && page >= maxPages {
			return nil
		}
	}
}

// getJSON performs an authenticated GET and decodes the response. On a
// 401/403 it forces exactly one refresh through the token provider and
// retries once; a second rejection invalidates the session and surfaces
// reauth_required. This bounds retry amplification to one extra round trip.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return err
	}

	status, body, err := c.do(ctx, path, query, token)
	if err != nil {
		return session.NewAuthError(session.KindTransport, err)
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		logging.Debug("OntoAPI", "Request to %s rejected with %d, forcing token refresh", path, status)

		token, err = c.tokens.ForceRefresh(ctx)
		if err != nil {
			return err
		}

		status, body, err = c.do(ctx, path, query, token)
		if err != nil {
			return session.NewAuthError(session.KindTransport, err)
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			c.tokens.Invalidate()
			return session.NewAuthError(session.KindReauthRequired,
				fmt.Errorf("platform rejected a freshly refreshed token with status %d", status))
		}
	}

	if status >= 400 {
		return session.NewAuthError(session.KindRemoteError,
			fmt.Errorf("GET %s failed with HTTP %d: %s", path, status, bodySnippet(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return session.NewAuthError(session.KindRemoteError,
			fmt.Errorf("failed to parse response from %s: %w", path, err))
	}

	return nil
}

// do executes one bearer-authenticated GET request.
func (c *Client) do(ctx context.Context, path string, query url.Values, token string) (int, []byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	return resp.StatusCode, body, nil
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodySnippet {
		s = s[:maxErrorBodySnippet]
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
