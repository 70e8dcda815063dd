// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for
// the broker: metrics and traces covering the OAuth edges, the upstream
// request executor, and the tool bridge.
//
// # Quick Start
//
// Create an instance and pass it to the components that accept one:
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "mcp-backoffice",
//		ServiceVersion: "0.1.0",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// When no meter or tracer provider is configured, no-op providers are used
// and instrumentation adds no overhead.
//
// # Available Metrics
//
// OAuth edges:
//   - backoffice.oauth.token_exchanges.total{vendor, grant_type, success}
//   - backoffice.oauth.token_refreshes.total{vendor, success}
//   - backoffice.oauth.clients_registered.total
//
// Upstream executor:
//   - backoffice.upstream.requests.total{vendor, method, status}
//   - backoffice.upstream.request.duration{vendor, method, status}
//   - backoffice.upstream.refresh_retries.total{vendor}
//
// Tool bridge:
//   - backoffice.tools.invocations.total{tool, outcome}
//   - backoffice.tools.invocation.duration{tool, outcome}
//
// # Security Considerations
//
// Never record actual credential values (access tokens, refresh tokens,
// authorization codes, client secrets) in metrics or traces. Only metadata
// such as vendor names, grant types, statuses, and outcomes is recorded.
package instrumentation
