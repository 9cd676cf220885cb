package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// authTokenCmd represents the auth token command.
var authTokenCmd = &cobra.Command{
	Use:   "token <access-token>",
	Short: "Store an existing access token",
	Long: `Store an access token obtained elsewhere (e.g. copied from the Onto web
UI) as the current session.

The token is validated against the identity provider before it is stored.
Manually supplied tokens carry no refresh token, so the session ends when
the token expires.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthToken,
}

func runAuthToken(cmd *cobra.Command, args []string) error {
	manager, err := buildManager()
	if err != nil {
		return err
	}

	sess, err := manager.LoginWithToken(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Token stored for %s.\n", sess.Subject)
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Expires at %s (not refreshable).\n",
			sess.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
