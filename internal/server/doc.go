// Package server provides the web UI server, the Prometheus metrics server,
// and the shared ServerContext used by the web UI and the MCP tools.
//
// # Key Components
//
// ServerContext owns the Microsoft Graph mail client for the lifetime of a
// server process. The credential can be primed from the token cache at
// startup or supplied later through POST /api/set-token.
//
// WebServer serves the single-page UI and its JSON API:
//   - GET  /                  the embedded UI
//   - POST /api/set-token     probe and adopt a pasted access token
//   - GET  /api/inbox         the 20 newest messages
//   - GET  /api/unread        up to 50 unread messages
//   - GET  /api/since?days=N  messages from the last N days
//   - GET  /api/search?q=...  subject or sender search
//
// Requests without a usable credential get 401 with a JSON error body.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed.
//
// MetricsServer exposes /metrics on a dedicated address.
package server
