// Package instrumentation wires OpenTelemetry metrics and tracing into
// inboxreader.
//
// # Metrics
//
//   - http_requests_total, http_request_duration_seconds: web UI requests
//   - graph_api_operations_total, graph_api_operation_duration_seconds:
//     Microsoft Graph calls by operation and status
//   - graph_api_records_skipped_total: malformed messages dropped
//   - oauth_auth_total, oauth_auth_duration_seconds: flow runs by flow and result
//   - token_cache_lookups_total: cache lookups by backend and result
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds: MCP tools
//
// # Exporters
//
// Metrics: prometheus (default, served by the metrics server), otlp, stdout.
// Traces: none (default), otlp, stdout. Stdout exporters write to stderr so
// they never interleave with the MCP stdio transport.
//
// # Configuration
//
//	INSTRUMENTATION_ENABLED=true
//	METRICS_EXPORTER=prometheus
//	TRACING_EXPORTER=otlp
//	OTEL_EXPORTER_OTLP_ENDPOINT=localhost:4318
//	OTEL_TRACES_SAMPLER_ARG=0.1
package instrumentation
