// Package config loads inboxreader settings.
//
// Sources, lowest precedence first:
//   - built-in defaults
//   - a YAML file (--config, or config.yaml in the user config directory)
//   - a .env file in the working directory, loaded into the environment
//   - OUTLOOK_* environment variables (OUTLOOK_AUTH_FLOW, OUTLOOK_GRAPH_URL, ...)
//   - command-line flags
//
// OUTLOOK_EMAIL is accepted as a shorthand for OUTLOOK_AUTH_EMAIL.
package config
