package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the broker.
type Metrics struct {
	// OAuth edge metrics
	TokenExchangesTotal metric.Int64Counter
	TokenRefreshesTotal metric.Int64Counter
	ClientsRegistered   metric.Int64Counter

	// Upstream executor metrics
	UpstreamRequestsTotal   metric.Int64Counter
	UpstreamRequestDuration metric.Float64Histogram
	RefreshRetriesTotal     metric.Int64Counter

	// Tool bridge metrics
	ToolInvocationsTotal   metric.Int64Counter
	ToolInvocationDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments.
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	oauthMeter := inst.Meter("oauth")
	upstreamMeter := inst.Meter("upstream")
	toolsMeter := inst.Meter("tools")

	var err error
	m.TokenExchangesTotal, err = oauthMeter.Int64Counter(
		"backoffice.oauth.token_exchanges.total",
		metric.WithDescription("Token-endpoint grants performed against a vendor"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_exchanges counter: %w", err)
	}

	m.TokenRefreshesTotal, err = oauthMeter.Int64Counter(
		"backoffice.oauth.token_refreshes.total",
		metric.WithDescription("Refresh-token grants performed against a vendor"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_refreshes counter: %w", err)
	}

	m.ClientsRegistered, err = oauthMeter.Int64Counter(
		"backoffice.oauth.clients_registered.total",
		metric.WithDescription("Dynamically registered OAuth clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clients_registered counter: %w", err)
	}

	m.UpstreamRequestsTotal, err = upstreamMeter.Int64Counter(
		"backoffice.upstream.requests.total",
		metric.WithDescription("Requests issued against vendor resource APIs"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream requests counter: %w", err)
	}

	m.UpstreamRequestDuration, err = upstreamMeter.Float64Histogram(
		"backoffice.upstream.request.duration",
		metric.WithDescription("Vendor resource API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream duration histogram: %w", err)
	}

	m.RefreshRetriesTotal, err = upstreamMeter.Int64Counter(
		"backoffice.upstream.refresh_retries.total",
		metric.WithDescription("401 responses recovered via refresh-and-retry"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh_retries counter: %w", err)
	}

	m.ToolInvocationsTotal, err = toolsMeter.Int64Counter(
		"backoffice.tools.invocations.total",
		metric.WithDescription("Tool invocations by name and outcome"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool invocations counter: %w", err)
	}

	m.ToolInvocationDuration, err = toolsMeter.Float64Histogram(
		"backoffice.tools.invocation.duration",
		metric.WithDescription("Tool invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	return m, nil
}

// RecordTokenExchange records a token-endpoint grant and its outcome.
func (m *Metrics) RecordTokenExchange(ctx context.Context, vendor, grantType string, success bool) {
	m.TokenExchangesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrVendor, vendor),
		attribute.String(AttrGrantType, grantType),
		attribute.Bool(AttrSuccess, success),
	))
	if grantType == "refresh_token" {
		m.TokenRefreshesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrVendor, vendor),
			attribute.Bool(AttrSuccess, success),
		))
	}
}

// RecordClientRegistered records a dynamic client registration.
func (m *Metrics) RecordClientRegistered(ctx context.Context) {
	m.ClientsRegistered.Add(ctx, 1)
}

// RecordUpstreamRequest records one resource-API request.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, vendor, method string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrVendor, vendor),
		attribute.String(AttrHTTPMethod, method),
		attribute.Int(AttrHTTPStatusCode, status),
	)
	m.UpstreamRequestsTotal.Add(ctx, 1, attrs)
	m.UpstreamRequestDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// RecordRefreshRetry records a 401 recovered through refresh-and-retry.
func (m *Metrics) RecordRefreshRetry(ctx context.Context, vendor string) {
	m.RefreshRetriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrVendor, vendor),
	))
}

// RecordToolInvocation records one tool invocation and its outcome.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrToolName, tool),
		attribute.String(AttrOutcome, outcome),
	)
	m.ToolInvocationsTotal.Add(ctx, 1, attrs)
	m.ToolInvocationDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}
