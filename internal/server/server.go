package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ontomcp/internal/config"
	"ontomcp/internal/onto"
	"ontomcp/internal/session"
	"ontomcp/pkg/logging"
)

// serverName and serverVersion identify this MCP server to clients.
const (
	serverName    = "onto-mcp"
	serverVersion = "1.0.0"
)

// shutdownTimeout bounds graceful shutdown of the HTTP transport.
const shutdownTimeout = 5 * time.Second

// Server is the tool/resource façade: it maps MCP tool calls onto the
// session manager and the platform API client and formats results for the
// calling assistant.
type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	api      *onto.Client

	mcpServer            *server.MCPServer
	streamableHTTPServer *server.StreamableHTTPServer
	watcher              *session.Watcher

	// pendingOAuthState is the state value handed out by the most recent
	// begin_oauth_login call, verified on completion when supplied.
	mu                sync.Mutex
	pendingOAuthState string
}

// New creates the MCP server façade and registers all tools and resources.
func New(cfg *config.Config, sessions *session.Manager, api *onto.Client) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false), // tool set is static
		server.WithResourceCapabilities(false, false),
	)

	s := &Server{
		cfg:       cfg,
		sessions:  sessions,
		api:       api,
		mcpServer: mcpServer,
		watcher:   session.NewWatcher(sessions),
	}

	s.registerTools()
	s.registerResources()

	return s
}

// Start runs the configured transport until ctx is cancelled (stdio) or the
// listener fails. The token-file watcher runs for the lifetime of the
// server so logins performed by the CLI are picked up without a restart.
func (s *Server) Start(ctx context.Context) error {
	if err := s.watcher.Start(); err != nil {
		return err
	}
	defer s.watcher.Stop()

	switch s.cfg.Transport {
	case config.TransportStdio:
		logging.Info("Server", "Starting MCP server with stdio transport")
		return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)

	case config.TransportStreamableHTTP:
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
		logging.Info("Server", "Starting MCP server with streamable-http transport on %s", addr)

		s.streamableHTTPServer = server.NewStreamableHTTPServer(s.mcpServer)

		errCh := make(chan error, 1)
		go func() {
			if err := s.streamableHTTPServer.Start(addr); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			return s.shutdownHTTP()
		case err := <-errCh:
			return fmt.Errorf("streamable HTTP server error: %w", err)
		}

	default:
		return fmt.Errorf("unsupported transport: %s", s.cfg.Transport)
	}
}

func (s *Server) shutdownHTTP() error {
	if s.streamableHTTPServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.streamableHTTPServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server", err, "Error shutting down streamable HTTP server")
		return err
	}
	return nil
}

// registerTools wires every external operation to its handler.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("login_with_credentials",
		mcp.WithDescription("Authenticate to the Onto platform with username and password. Stores the session for subsequent calls."),
		mcp.WithString("username",
			mcp.Required(),
			mcp.Description("Username or email"),
		),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Password"),
		),
	), s.handleLoginWithCredentials)

	s.mcpServer.AddTool(mcp.NewTool("login_with_token",
		mcp.WithDescription("Store a personal Onto access token. Manual tokens cannot be refreshed; re-run this tool when the token expires."),
		mcp.WithString("token",
			mcp.Required(),
			mcp.Description("JWT access token"),
		),
	), s.handleLoginWithToken)

	s.mcpServer.AddTool(mcp.NewTool("begin_oauth_login",
		mcp.WithDescription("Build the identity provider's authorization URL for a browser-based OAuth login. Open the URL, sign in, then call complete_oauth_login with the returned code."),
		mcp.WithString("redirect_uri",
			mcp.Required(),
			mcp.Description("Callback URL registered with the identity provider"),
		),
	), s.handleBeginOAuth)

	s.mcpServer.AddTool(mcp.NewTool("complete_oauth_login",
		mcp.WithDescription("Exchange an OAuth authorization code for tokens and store the session."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Authorization code from the callback"),
		),
		mcp.WithString("redirect_uri",
			mcp.Required(),
			mcp.Description("The redirect URI used in begin_oauth_login"),
		),
		mcp.WithString("state",
			mcp.Description("State value from the callback, verified against begin_oauth_login"),
		),
	), s.handleCompleteOAuth)

	s.mcpServer.AddTool(mcp.NewTool("logout",
		mcp.WithDescription("Clear the stored authentication session and revoke the refresh token."),
	), s.handleLogout)

	s.mcpServer.AddTool(mcp.NewTool("auth_status",
		mcp.WithDescription("Show the current authentication status without any network call."),
	), s.handleAuthStatus)

	s.mcpServer.AddTool(mcp.NewTool("list_realms",
		mcp.WithDescription("List the Onto realms (spaces) visible to the authenticated user."),
	), s.handleListRealms)

	s.mcpServer.AddTool(mcp.NewTool("search_templates",
		mcp.WithDescription("Search object templates by name, optionally within a single realm."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term"),
		),
		mcp.WithString("realm_id",
			mcp.Description("Restrict the search to this realm"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Results per page (default 50)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Pages to aggregate; -1 fetches until end of data (default 1)"),
		),
	), s.handleSearchTemplates)

	s.mcpServer.AddTool(mcp.NewTool("search_objects",
		mcp.WithDescription("Search object instances by name, optionally within a single realm."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term"),
		),
		mcp.WithString("realm_id",
			mcp.Description("Restrict the search to this realm"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Results per page (default 50)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Pages to aggregate; -1 fetches until end of data (default 1)"),
		),
	), s.handleSearchObjects)
}

// registerResources wires the read-only MCP resources.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"onto://spaces",
		"Onto spaces",
		mcp.WithResourceDescription("The Onto realms (spaces) visible to the authenticated user"),
		mcp.WithMIMEType("application/json"),
	), s.handleSpacesResource)
}
