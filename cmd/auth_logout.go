package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// authLogoutCmd represents the auth logout command.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Long: `Clear the stored authentication session.

The refresh token is revoked at the identity provider on a best-effort
basis; local state is removed regardless.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := buildManager()
	if err != nil {
		return err
	}

	manager.Logout(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}
