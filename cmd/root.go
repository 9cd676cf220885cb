package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"ontomcp/internal/session"
)

// Exit codes for CLI commands. These follow common conventions so wrapper
// scripts can distinguish "run auth login again" from a hard failure.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates a login attempt was rejected.
	ExitCodeAuthFailed = 3
)

// rootCmd represents the base command for the onto-mcp application.
var rootCmd = &cobra.Command{
	Use:   "onto-mcp",
	Short: "MCP server for the Onto knowledge platform",
	Long: `onto-mcp exposes the Onto knowledge platform to AI assistants over the
Model Context Protocol. It manages Keycloak authentication (password,
token, and browser OAuth logins), keeps tokens fresh across calls, and
provides search tools over realms, templates, and objects.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "onto-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the exit code based on the error's kind. This
// provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch session.KindOf(err) {
	case session.KindUnauthenticated, session.KindReauthRequired:
		return ExitCodeAuthRequired
	case session.KindInvalidCredentials, session.KindInvalidToken:
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
