package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"ontomcp/internal/session"
)

// Status-specific flags
var statusVerify bool

// authStatusCmd represents the auth status command.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the status of the stored authentication session.

By default this is a purely local check of the stored tokens. With
--verify the token is also presented to the identity provider, which
catches sessions revoked server-side before their local expiry.

Examples:
  onto-mcp auth status           # Local check only
  onto-mcp auth status --verify  # Also verify with the identity provider`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().BoolVar(&statusVerify, "verify", false, "Verify the token with the identity provider")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := buildManager()
	if err != nil {
		return err
	}

	info := manager.Status()

	fmt.Fprintln(cmd.OutOrStdout(), "Onto session")
	fmt.Fprintf(cmd.OutOrStdout(), "  Status:   %s\n", colorStatus(info.Status))

	if info.Status == session.StatusUnauthenticated {
		fmt.Fprintln(cmd.OutOrStdout(), "  Run: onto-mcp auth login --username <user>")
		return nil
	}

	if info.Subject != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  Subject:  %s\n", info.Subject)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  Via:      %s\n", info.AcquiredVia)
	if !info.ExpiresAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "  Expires:  %s (%s)\n",
			info.ExpiresAt.Format("2006-01-02 15:04:05 MST"), untilText(info.ExpiresAt))
	}
	if !info.RefreshExpiresAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "  Refresh:  usable until %s\n",
			info.RefreshExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}

	if statusVerify {
		userInfo, err := manager.Userinfo(cmd.Context())
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  Verify:   %s (%v)\n", text.FgRed.Sprint("rejected"), err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Verify:   %s as %s\n", text.FgGreen.Sprint("accepted"), userInfo.DisplayName())
	}

	return nil
}

// colorStatus renders the status value with a traffic-light color.
func colorStatus(status session.AuthStatus) string {
	switch status {
	case session.StatusValid:
		return text.FgGreen.Sprint(status)
	case session.StatusExpiringSoon, session.StatusExpiredRefreshable:
		return text.FgYellow.Sprint(status)
	case session.StatusExpiredUnrefreshable:
		return text.FgRed.Sprint(status)
	default:
		return text.FgHiBlack.Sprint(status)
	}
}

// untilText humanizes the distance to a deadline.
func untilText(deadline time.Time) string {
	d := time.Until(deadline)
	if d <= 0 {
		return "expired"
	}
	return fmt.Sprintf("in %s", d.Round(time.Second))
}
