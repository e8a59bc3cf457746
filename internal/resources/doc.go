// Package resources provides MCP resources for the signed-in account.
// Resources are read-only data that MCP clients fetch on demand, such as
// the user's profile and whether the server currently holds a credential.
package resources
