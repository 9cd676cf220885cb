package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ontomcp/internal/config"
	"ontomcp/internal/onto"
	"ontomcp/internal/server"
	"ontomcp/internal/session"
	"ontomcp/pkg/logging"
)

// Serve-specific flags. Flags override both the config file and the
// environment.
var (
	serveTransport string
	serveHost      string
	servePort      int
	serveDebug     bool
)

// serveCmd defines the serve command structure. This is the main command of
// onto-mcp: it starts the MCP server on the configured transport.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the onto-mcp MCP server",
	Long: `Starts the MCP server that exposes the Onto platform to AI assistants.

Two transports are supported:

1. stdio (default):
   - Speaks MCP over stdin/stdout, for clients that spawn the server as a
     subprocess (Cursor, Claude Desktop). Logs go to stderr.

2. streamable-http (--transport http):
   - Listens on --host/--port for clients that connect over HTTP.

Configuration is read from ~/.onto-mcp/config.yaml and the environment
(KEYCLOAK_BASE_URL, KEYCLOAK_REALM, KEYCLOAK_CLIENT_ID, ONTO_API_BASE, ...).
A session stored by 'onto-mcp auth login' is picked up automatically, even
while the server is running.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyServeFlags(cfg)

	srv, err := buildServer(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

// applyServeFlags overlays explicitly set flags onto the loaded config.
func applyServeFlags(cfg *config.Config) {
	if serveTransport != "" {
		cfg.Transport = serveTransport
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
}

// buildServer wires the identity provider client, session manager, and API
// client into the MCP server façade.
func buildServer(cfg *config.Config) (*server.Server, error) {
	tokenDir, err := cfg.TokenDirOrDefault()
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(tokenDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open token storage: %w", err)
	}

	idp := keycloakClient(cfg)
	sessions := session.NewManager(idp, store)
	api := onto.NewClient(cfg.OntoAPIBase, sessions)

	return server.New(cfg, sessions, api), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport to serve on: stdio or http (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host for the http transport")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port for the http transport")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}
