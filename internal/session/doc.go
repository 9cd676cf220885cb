// Package session owns the Keycloak session lifecycle for onto-mcp.
//
// The Manager is the single authority on token freshness: callers obtain
// bearer tokens through EnsureValid and never inspect expiry timestamps
// themselves. A 30-second safety margin is applied ahead of the actual
// expiry so in-flight requests do not race the deadline, and concurrent
// refresh attempts for the same refresh token are coalesced into one
// refresh-grant call.
//
// # Persistence
//
// Sessions are persisted by Store as a single JSON file:
//
//	~/.onto-mcp/tokens.json
//
// Token values in the file are XOR-obfuscated and the file is written
// atomically (temp file + rename) with 0600 permissions. Load fails soft:
// a missing or corrupt file simply starts the manager unauthenticated.
//
// # Cross-process sharing
//
// The CLI (onto-mcp auth ...) and the MCP server share the same file.
// Watcher observes the storage directory with fsnotify and reloads the
// in-memory session when another process rewrites the file, so a login
// performed in a terminal becomes visible to a running server without a
// restart.
//
// # Error classification
//
// Failures surface as *AuthError with an ErrorKind (invalid_credentials,
// reauth_required, transport, ...) so the CLI and the MCP tool handlers
// can render actionable guidance without matching on message strings.
package session
