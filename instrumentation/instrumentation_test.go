package instrumentation

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewWithDefaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Metrics() == nil {
		t.Fatal("metrics should be initialized")
	}
	// No-op providers: recording must not panic.
	inst.Metrics().RecordTokenExchange(context.Background(), "quickbooks", "authorization_code", true)
	inst.Metrics().RecordToolInvocation(context.Background(), "getInvoices", "success", time.Millisecond)
}

func TestMetricsAreRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	inst, err := New(Config{
		ServiceName:   "test-service",
		MeterProvider: provider,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	inst.Metrics().RecordTokenExchange(ctx, "quickbooks", "refresh_token", true)
	inst.Metrics().RecordUpstreamRequest(ctx, "quickbooks", "GET", 200, 40*time.Millisecond)
	inst.Metrics().RecordRefreshRetry(ctx, "quickbooks")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			found[m.Name] = true
		}
	}

	for _, name := range []string{
		"backoffice.oauth.token_exchanges.total",
		"backoffice.oauth.token_refreshes.total",
		"backoffice.upstream.requests.total",
		"backoffice.upstream.request.duration",
		"backoffice.upstream.refresh_retries.total",
	} {
		if !found[name] {
			t.Errorf("metric %s was not recorded", name)
		}
	}
}

func TestMeterScopePrefix(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Meter and Tracer lookups must not panic with noop providers.
	_ = inst.Meter("oauth")
	_ = inst.Tracer("upstream")
}
