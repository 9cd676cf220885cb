package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"ontomcp/internal/onto"
	"ontomcp/pkg/logging"
)

// handleLoginWithCredentials handles the login_with_credentials tool.
func (s *Server) handleLoginWithCredentials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	username, ok := args["username"].(string)
	if !ok || username == "" {
		return mcp.NewToolResultError("'username' argument is required and must be a string"), nil
	}
	password, ok := args["password"].(string)
	if !ok || password == "" {
		return mcp.NewToolResultError("'password' argument is required and must be a string"), nil
	}

	sess, err := s.sessions.LoginWithCredentials(ctx, username, password)
	if err != nil {
		return authErrorResult(err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Authenticated as %s. The session is stored; tools like search_templates and list_realms are ready to use.",
		sess.Subject,
	)), nil
}

// handleLoginWithToken handles the login_with_token tool.
func (s *Server) handleLoginWithToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	rawToken, ok := args["token"].(string)
	if !ok || rawToken == "" {
		return mcp.NewToolResultError("'token' argument is required and must be a string"), nil
	}

	sess, err := s.sessions.LoginWithToken(ctx, rawToken)
	if err != nil {
		return authErrorResult(err), nil
	}

	msg := fmt.Sprintf("Token stored for %s.", sess.Subject)
	if !sess.ExpiresAt.IsZero() {
		msg += fmt.Sprintf(" It expires at %s and cannot be refreshed; run login_with_token again after expiry.",
			sess.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}
	return mcp.NewToolResultText(msg), nil
}

// handleBeginOAuth handles the begin_oauth_login tool. A fresh random state
// value is generated per call and remembered for verification on
// completion.
func (s *Server) handleBeginOAuth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	redirectURI, ok := args["redirect_uri"].(string)
	if !ok || redirectURI == "" {
		return mcp.NewToolResultError("'redirect_uri' argument is required and must be a string"), nil
	}

	state := uuid.NewString()
	authURL, err := s.sessions.BeginOAuth(redirectURI, state)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to build authorization URL: %v", err)), nil
	}

	s.mu.Lock()
	s.pendingOAuthState = state
	s.mu.Unlock()

	return mcp.NewToolResultText(fmt.Sprintf(
		"Open this URL in a browser and sign in:\n\n%s\n\n"+
			"After signing in you will be redirected to %s with 'code' and 'state' query parameters. "+
			"Call complete_oauth_login with them to finish.",
		authURL, redirectURI,
	)), nil
}

// handleCompleteOAuth handles the complete_oauth_login tool.
func (s *Server) handleCompleteOAuth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	code, ok := args["code"].(string)
	if !ok || code == "" {
		return mcp.NewToolResultError("'code' argument is required and must be a string"), nil
	}
	redirectURI, ok := args["redirect_uri"].(string)
	if !ok || redirectURI == "" {
		return mcp.NewToolResultError("'redirect_uri' argument is required and must be a string"), nil
	}

	if state, ok := args["state"].(string); ok && state != "" {
		s.mu.Lock()
		expected := s.pendingOAuthState
		s.mu.Unlock()
		if expected != "" && state != expected {
			return mcp.NewToolResultError("state mismatch: the callback state does not match the one issued by begin_oauth_login"), nil
		}
	}

	sess, err := s.sessions.CompleteOAuth(ctx, code, redirectURI)
	if err != nil {
		return authErrorResult(err), nil
	}

	s.mu.Lock()
	s.pendingOAuthState = ""
	s.mu.Unlock()

	return mcp.NewToolResultText(fmt.Sprintf("Authenticated as %s via OAuth. The session is stored.", sess.Subject)), nil
}

// handleLogout handles the logout tool.
func (s *Server) handleLogout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.sessions.Logout(ctx)
	return mcp.NewToolResultText("Logged out. The stored session has been cleared."), nil
}

// handleAuthStatus handles the auth_status tool. Pure local read.
func (s *Server) handleAuthStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := s.sessions.Status()

	jsonData, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format status: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleListRealms handles the list_realms tool.
func (s *Server) handleListRealms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	realms, err := s.api.ListRealms(ctx)
	if err != nil {
		return authErrorResult(err), nil
	}

	if len(realms) == 0 {
		return mcp.NewToolResultText("No realms are visible to the authenticated user."), nil
	}

	jsonData, err := json.MarshalIndent(realms, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format realms: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleSearchTemplates handles the search_templates tool.
func (s *Server) handleSearchTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, errResult := searchOptionsFromArgs(request.GetArguments())
	if errResult != nil {
		return errResult, nil
	}

	templates, err := s.api.SearchTemplates(ctx, opts)
	if err != nil {
		return authErrorResult(err), nil
	}

	if len(templates) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No templates found for %q.", opts.Query)), nil
	}

	jsonData, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format templates: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Found %d template(s):\n%s", len(templates), jsonData)), nil
}

// handleSearchObjects handles the search_objects tool.
func (s *Server) handleSearchObjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, errResult := searchOptionsFromArgs(request.GetArguments())
	if errResult != nil {
		return errResult, nil
	}

	objects, err := s.api.SearchObjects(ctx, opts)
	if err != nil {
		return authErrorResult(err), nil
	}

	if len(objects) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No objects found for %q.", opts.Query)), nil
	}

	jsonData, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format objects: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Found %d object(s):\n%s", len(objects), jsonData)), nil
}

// handleSpacesResource serves the onto://spaces resource.
func (s *Server) handleSpacesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	realms, err := s.api.ListRealms(ctx)
	if err != nil {
		logging.Debug("Server", "onto://spaces read failed: %v", err)
		return nil, err
	}

	jsonData, err := json.MarshalIndent(realms, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format realms: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// searchOptionsFromArgs extracts the shared search tool arguments. Returns
// a non-nil error result for invalid input.
func searchOptionsFromArgs(args map[string]interface{}) (onto.SearchOptions, *mcp.CallToolResult) {
	var opts onto.SearchOptions

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return opts, mcp.NewToolResultError("'query' argument is required and must be a string")
	}
	opts.Query = query

	if realmID, ok := args["realm_id"].(string); ok {
		opts.RealmID = realmID
	}

	if pageSize, ok := args["page_size"].(float64); ok {
		if pageSize < 1 || pageSize > 500 {
			return opts, mcp.NewToolResultError("page_size must be between 1 and 500")
		}
		opts.PageSize = int(pageSize)
	}

	if maxPages, ok := args["max_pages"].(float64); ok {
		opts.MaxPages = int(maxPages)
	}

	return opts, nil
}
