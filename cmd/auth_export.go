package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// authExportCmd represents the auth export command.
var authExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the session as an OAuth2 token",
	Long: `Print the stored session as a standard OAuth2 token in JSON.

The token is refreshed first if it is about to expire, so the printed
access token is immediately usable. The output matches the
golang.org/x/oauth2 token shape and can be fed to other tooling:

  curl -H "Authorization: Bearer $(onto-mcp auth export | jq -r .access_token)" ...`,
	Args: cobra.NoArgs,
	RunE: runAuthExport,
}

func runAuthExport(cmd *cobra.Command, args []string) error {
	manager, err := buildManager()
	if err != nil {
		return err
	}

	token, err := manager.OAuth2Token(cmd.Context())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
