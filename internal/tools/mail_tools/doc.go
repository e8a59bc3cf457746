// Package mail_tools exposes the Outlook inbox queries as read-only MCP tools.
//
// Every tool returns JSON. A single query yields {"count": N, "emails": [...]}
// with records in the same shape as the web API; outlook_search with several
// queries yields a batch summary with one entry per query.
package mail_tools
