// Package cmd implements the command-line interface for inboxreader.
//
// This package provides the following commands:
//   - read: Sign in and browse the inbox from an interactive menu
//   - login: Sign in and cache the token without opening the menu
//   - logout: Remove the cached token
//   - web: Serve the local web UI
//   - serve: Start the MCP server on stdio
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The read command is the default command when no subcommand is specified.
package cmd
