package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"ontomcp/internal/session"
)

// authErrorResult converts an error from the session manager or the API
// client into a tool result whose message tells the caller what to do
// next, not just what went wrong.
func authErrorResult(err error) *mcp.CallToolResult {
	switch session.KindOf(err) {
	case session.KindUnauthenticated:
		return mcp.NewToolResultError(
			"Not authenticated. Run login_with_credentials (username/password), " +
				"login_with_token (existing access token), or begin_oauth_login (browser flow) first.")
	case session.KindReauthRequired:
		return mcp.NewToolResultError(
			"The stored session has expired and could not be refreshed. " +
				"Sign in again with login_with_credentials or begin_oauth_login.")
	case session.KindInvalidCredentials:
		return mcp.NewToolResultError("Authentication failed: the username or password was rejected.")
	case session.KindInvalidToken:
		return mcp.NewToolResultError(
			"The provided token was rejected. Make sure it is a current access token " +
				"and has not expired.")
	case session.KindTransport:
		return mcp.NewToolResultError(fmt.Sprintf(
			"Could not reach the server: %v. Check connectivity and try again.", err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Request failed: %v", err))
	}
}
