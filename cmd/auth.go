package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ontomcp/internal/config"
	"ontomcp/internal/keycloak"
	"ontomcp/internal/session"
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication to the Onto platform",
	Long: `Manage the stored Onto authentication session.

A session created here is shared with the MCP server: a running
'onto-mcp serve' picks up the stored tokens without a restart.

Examples:
  onto-mcp auth login --username alice   # Password login
  onto-mcp auth token <jwt>              # Store an existing access token
  onto-mcp auth status                   # Show session status
  onto-mcp auth logout                   # Clear the session`,
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authTokenCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authExportCmd)
}

// keycloakClient builds the identity provider client from config.
func keycloakClient(cfg *config.Config) *keycloak.Client {
	return keycloak.NewClient(cfg.KeycloakBaseURL, cfg.KeycloakRealm, cfg.KeycloakClientID, cfg.KeycloakClientSecret)
}

// buildManager loads config and constructs the session manager the auth
// subcommands operate on.
func buildManager() (*session.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	tokenDir, err := cfg.TokenDirOrDefault()
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(tokenDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open token storage: %w", err)
	}
	return session.NewManager(keycloakClient(cfg), store), nil
}
