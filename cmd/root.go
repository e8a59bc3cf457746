package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxreader/internal/config"
)

// rootCmd represents the base command for the inboxreader application
var rootCmd = &cobra.Command{
	Use:   "inboxreader",
	Short: "Reads your Outlook inbox through Microsoft Graph",
	Long: `inboxreader signs in to a Microsoft 365 or Outlook.com account and lists
recent, unread, recent-days or matching messages from the inbox.

It can run as:
  - An interactive terminal menu (default)
  - A local web UI
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage:      true,
	PersistentPreRunE: loadApp,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxreader version %s\n" .Version}}`)

	// If no subcommand is provided, run the read command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "read")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	fs := rootCmd.PersistentFlags()
	fs.String(config.FlagConfig, "", "Config file (default: <user config dir>/inboxreader/config.yaml)")
	fs.String(config.FlagFlow, "", "Sign-in flow: device-code, interactive or auth-code")
	fs.String(config.FlagEmail, "", "Account to sign in as, passed to the identity provider as a login hint")
	fs.String(config.FlagTenant, "", "Azure AD tenant (default: common)")
	fs.String(config.FlagClientID, "", "Application (client) ID registered in Azure AD")
	fs.String(config.FlagCacheBackend, "", "Token cache backend: file or keyring")
	fs.Bool(config.FlagDebug, false, "Enable debug logging")
	fs.String(config.FlagLogFormat, "", "Log format: text or json")

	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWebCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
