package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Login-specific flags
var (
	loginUsername          string
	loginPassword          string
	loginPasswordStdin     bool
	loginClientCredentials bool
)

// authLoginCmd represents the auth login command.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate to the Onto platform",
	Long: `Authenticate to the Onto platform and store the session.

By default this performs a password grant against the configured Keycloak
realm. With --client-credentials it authenticates as the configured OAuth
client instead (requires a client secret in the configuration).

Examples:
  onto-mcp auth login --username alice --password-stdin < pw.txt
  onto-mcp auth login --username alice --password secret
  onto-mcp auth login --client-credentials`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username or email")
	authLoginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prefer --password-stdin)")
	authLoginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	authLoginCmd.Flags().BoolVar(&loginClientCredentials, "client-credentials", false, "Authenticate with the client-credentials grant")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := buildManager()
	if err != nil {
		return err
	}

	if loginClientCredentials {
		sess, err := manager.LoginWithClientCredentials(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (client credentials).\n", sess.Subject)
		return nil
	}

	if loginUsername == "" {
		return fmt.Errorf("--username is required (or use --client-credentials)")
	}

	password := loginPassword
	if loginPasswordStdin {
		password, err = readPasswordStdin()
		if err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("no password given: use --password or --password-stdin")
	}

	sess, err := manager.LoginWithCredentials(cmd.Context(), loginUsername, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", sess.Subject)
	fmt.Fprintf(cmd.OutOrStdout(), "Session stored in %s\n", manager.StorePath())
	return nil
}

// readPasswordStdin reads the first line from stdin. Trailing newline and
// carriage return are stripped so piped files behave like typed input.
func readPasswordStdin() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
