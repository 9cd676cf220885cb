package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontomcp/internal/keycloak"
	"ontomcp/internal/onto"
	"ontomcp/internal/session"
)

// testEnv wires a Server against fake identity-provider and platform
// endpoints.
type testEnv struct {
	server *Server
	idp    *httptest.Server
	api    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	idpMux := http.NewServeMux()
	idpMux.HandleFunc("/realms/onto/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("grant_type") == "password" && r.PostForm.Get("password") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":       "access-1",
			"refresh_token":      "refresh-1",
			"token_type":         "Bearer",
			"expires_in":         3600,
			"refresh_expires_in": 86400,
		})
	})
	idpMux.HandleFunc("/realms/onto/protocol/openid-connect/revoke", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	idp := httptest.NewServer(idpMux)
	t.Cleanup(idp.Close)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/realm", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]onto.Realm{{ID: "r1", Name: "Engineering"}})
	})
	apiMux.HandleFunc("/template", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "nothing" {
			json.NewEncoder(w).Encode([]onto.Template{})
			return
		}
		json.NewEncoder(w).Encode([]onto.Template{{ID: "t1", Name: "Laptop"}})
	})
	api := httptest.NewServer(apiMux)
	t.Cleanup(api.Close)

	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	sessions := session.NewManager(keycloak.NewClient(idp.URL, "onto", "onto-client", ""), store)

	return &testEnv{
		server: &Server{
			sessions: sessions,
			api:      onto.NewClient(api.URL, sessions),
		},
		idp: idp,
		api: api,
	}
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text of the first content element.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func loginTestUser(t *testing.T, env *testEnv) {
	t.Helper()
	result, err := env.server.handleLoginWithCredentials(context.Background(), toolRequest(map[string]interface{}{
		"username": "alice",
		"password": "s3cret",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
}

func TestHandleLoginWithCredentials(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.server.handleLoginWithCredentials(context.Background(), toolRequest(map[string]interface{}{
		"username": "alice",
		"password": "s3cret",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Authenticated as alice")
}

func TestHandleLoginWithCredentials_MissingArgs(t *testing.T) {
	env := newTestEnv(t)

	for _, args := range []map[string]interface{}{
		{},
		{"username": "alice"},
		{"password": "s3cret"},
		{"username": 42, "password": "s3cret"},
	} {
		result, err := env.server.handleLoginWithCredentials(context.Background(), toolRequest(args))
		require.NoError(t, err)
		assert.True(t, result.IsError, "args %v", args)
	}
}

func TestHandleLoginWithCredentials_BadPassword(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.server.handleLoginWithCredentials(context.Background(), toolRequest(map[string]interface{}{
		"username": "alice",
		"password": "wrong",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "username or password")
}

func TestHandleListRealms(t *testing.T) {
	env := newTestEnv(t)
	loginTestUser(t, env)

	result, err := env.server.handleListRealms(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Engineering")
}

func TestHandleListRealms_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.server.handleListRealms(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	// The error must steer the caller to a login tool.
	assert.Contains(t, resultText(t, result), "login_with_credentials")
}

func TestHandleSearchTemplates(t *testing.T) {
	env := newTestEnv(t)
	loginTestUser(t, env)

	result, err := env.server.handleSearchTemplates(context.Background(), toolRequest(map[string]interface{}{
		"query": "laptop",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Laptop")
}

func TestHandleSearchTemplates_NoResults(t *testing.T) {
	env := newTestEnv(t)
	loginTestUser(t, env)

	result, err := env.server.handleSearchTemplates(context.Background(), toolRequest(map[string]interface{}{
		"query": "nothing",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No templates found")
}

func TestHandleAuthStatus(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.server.handleAuthStatus(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "unauthenticated")

	loginTestUser(t, env)

	result, err = env.server.handleAuthStatus(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, `"status": "valid"`)
	assert.Contains(t, text, "alice")
}

func TestHandleLogout(t *testing.T) {
	env := newTestEnv(t)
	loginTestUser(t, env)

	result, err := env.server.handleLogout(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	status, err := env.server.handleAuthStatus(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, status), "unauthenticated")
}

func TestHandleBeginAndCompleteOAuth(t *testing.T) {
	env := newTestEnv(t)

	begin, err := env.server.handleBeginOAuth(context.Background(), toolRequest(map[string]interface{}{
		"redirect_uri": "http://localhost:9000/cb",
	}))
	require.NoError(t, err)
	require.False(t, begin.IsError)
	assert.Contains(t, resultText(t, begin), "response_type=code")

	state := env.server.pendingOAuthState
	require.NotEmpty(t, state)

	// Wrong state is rejected before any token exchange.
	bad, err := env.server.handleCompleteOAuth(context.Background(), toolRequest(map[string]interface{}{
		"code":         "auth-code",
		"redirect_uri": "http://localhost:9000/cb",
		"state":        "tampered",
	}))
	require.NoError(t, err)
	assert.True(t, bad.IsError)

	good, err := env.server.handleCompleteOAuth(context.Background(), toolRequest(map[string]interface{}{
		"code":         "auth-code",
		"redirect_uri": "http://localhost:9000/cb",
		"state":        state,
	}))
	require.NoError(t, err)
	assert.False(t, good.IsError)
	assert.Empty(t, env.server.pendingOAuthState, "state is single-use")
}

func TestHandleSpacesResource(t *testing.T) {
	env := newTestEnv(t)
	loginTestUser(t, env)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "onto://spaces"

	contents, err := env.server.handleSpacesResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "onto://spaces", text.URI)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Contains(t, text.Text, "Engineering")
}

func TestSearchOptionsFromArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		want    onto.SearchOptions
		wantErr bool
	}{
		{
			name:    "missing query",
			args:    map[string]interface{}{},
			wantErr: true,
		},
		{
			name: "query only",
			args: map[string]interface{}{"query": "laptop"},
			want: onto.SearchOptions{Query: "laptop"},
		},
		{
			name: "all options",
			args: map[string]interface{}{
				"query":     "laptop",
				"realm_id":  "r1",
				"page_size": float64(25),
				"max_pages": float64(-1),
			},
			want: onto.SearchOptions{Query: "laptop", RealmID: "r1", PageSize: 25, MaxPages: -1},
		},
		{
			name:    "page size out of range",
			args:    map[string]interface{}{"query": "laptop", "page_size": float64(0)},
			wantErr: true,
		},
		{
			name:    "page size too large",
			args:    map[string]interface{}{"query": "laptop", "page_size": float64(1000)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, errResult := searchOptionsFromArgs(tt.args)
			if tt.wantErr {
				require.NotNil(t, errResult)
				return
			}
			require.Nil(t, errResult)
			assert.Equal(t, tt.want, opts)
		})
	}
}
