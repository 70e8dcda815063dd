package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/giantswarm/mcp-backoffice/instrumentation"
	"github.com/giantswarm/mcp-backoffice/upstream"
	"github.com/giantswarm/mcp-backoffice/vendors"
)

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func echoDefinition(name string) Definition {
	return Definition{
		Name:        name,
		Description: "echoes its arguments",
		Params: []Param{
			{Name: "subject", Description: "a string", Type: TypeString, Required: true},
			{Name: "count", Description: "an integer", Type: TypeInteger, Default: 7},
			{Name: "ratio", Description: "a number", Type: TypeNumber},
			{Name: "dryRun", Description: "a boolean", Type: TypeBoolean, Default: false},
			{Name: "tags", Description: "an array", Type: TypeArray},
		},
		Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
			return &Result{Summary: "echoed", Payload: args}, nil
		},
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	b := NewBridge(Config{})
	require.NoError(t, b.Register(echoDefinition("echo")))
	assert.Error(t, b.Register(echoDefinition("echo")))
}

func TestRegisterRejectsMissingHandler(t *testing.T) {
	b := NewBridge(Config{})
	assert.Error(t, b.Register(Definition{Name: "broken"}))
}

func TestRegisterRejectsUnknownParamType(t *testing.T) {
	b := NewBridge(Config{})
	err := b.Register(Definition{
		Name:    "broken",
		Params:  []Param{{Name: "x", Type: "decimal"}},
		Handler: func(ctx context.Context, args map[string]any) (*Result, error) { return nil, nil },
	})
	assert.Error(t, err)
}

func TestInvokeUnknownToolIsToolLevelError(t *testing.T) {
	b := NewBridge(Config{})

	result := b.Invoke(context.Background(), "nope", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "tool not found")
}

func TestInvokeRejectsUnknownArgument(t *testing.T) {
	b := NewBridge(Config{})
	require.NoError(t, b.Register(echoDefinition("echo")))

	result := b.Invoke(context.Background(), "echo", map[string]any{
		"subject": "hi",
		"rogue":   true,
	})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), `unknown argument "rogue"`)
}

func TestInvokeEnforcesRequiredArguments(t *testing.T) {
	b := NewBridge(Config{})
	require.NoError(t, b.Register(echoDefinition("echo")))

	result := b.Invoke(context.Background(), "echo", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), `missing required argument "subject"`)
}

func TestInvokeChecksArgumentTypes(t *testing.T) {
	b := NewBridge(Config{})
	require.NoError(t, b.Register(echoDefinition("echo")))

	tests := []struct {
		name string
		args map[string]any
	}{
		{"string gets number", map[string]any{"subject": 5.0}},
		{"integer gets fraction", map[string]any{"subject": "s", "count": 1.5}},
		{"integer gets string", map[string]any{"subject": "s", "count": "2"}},
		{"boolean gets string", map[string]any{"subject": "s", "dryRun": "yes"}},
		{"array gets scalar", map[string]any{"subject": "s", "tags": "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := b.Invoke(context.Background(), "echo", tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), "invalid arguments")
		})
	}
}

func TestInvokeAppliesDefaultsAndCoercesNumbers(t *testing.T) {
	var got map[string]any
	b := NewBridge(Config{})
	require.NoError(t, b.Register(Definition{
		Name: "capture",
		Params: []Param{
			{Name: "subject", Type: TypeString, Required: true},
			{Name: "count", Type: TypeInteger, Default: 7},
			{Name: "dryRun", Type: TypeBoolean, Default: false},
		},
		Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
			got = args
			return &Result{Summary: "done"}, nil
		},
	}))

	// JSON numbers arrive as float64 and must come out as int.
	result := b.Invoke(context.Background(), "capture", map[string]any{
		"subject": "hi",
		"count":   3.0,
	})
	assert.False(t, result.IsError)
	assert.Equal(t, 3, got["count"])
	assert.Equal(t, false, got["dryRun"])

	result = b.Invoke(context.Background(), "capture", map[string]any{"subject": "hi"})
	assert.False(t, result.IsError)
	assert.Equal(t, 7, got["count"])
}

func TestInvokeEnvelopeContainsSummaryAndPayload(t *testing.T) {
	b := NewBridge(Config{})
	require.NoError(t, b.Register(Definition{
		Name: "payload",
		Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
			return &Result{
				Summary: "Found 2 things",
				Payload: []map[string]string{{"id": "1"}, {"id": "2"}},
			}, nil
		},
	}))

	result := b.Invoke(context.Background(), "payload", nil)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 things")

	// The structured payload is pretty-printed JSON after the summary.
	_, jsonPart, found := cutEnvelope(text)
	require.True(t, found, "envelope should separate summary and payload")
	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &rows))
	assert.Len(t, rows, 2)
}

func cutEnvelope(text string) (summary, payload string, found bool) {
	for i := 0; i+1 < len(text); i++ {
		if text[i] == '\n' && text[i+1] == '\n' {
			return text[:i], text[i+2:], true
		}
	}
	return text, "", false
}

func TestInvokeSummaryOnlyEnvelope(t *testing.T) {
	b := NewBridge(Config{})
	require.NoError(t, b.Register(Definition{
		Name: "bare",
		Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
			return &Result{Summary: "Deleted event ev-1"}, nil
		},
	}))

	result := b.Invoke(context.Background(), "bare", nil)
	assert.Equal(t, "Deleted event ev-1", resultText(t, result))
}

func TestInvokeSurfacesHandlerFailuresAsToolErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			"upstream API error",
			&upstream.APIError{Status: http.StatusForbidden, StatusText: "Forbidden"},
			"upstream API error: 403 Forbidden",
		},
		{
			"oauth error",
			&vendors.OAuthError{Status: 400, Body: []byte(`{"error":"invalid_grant"}`), GrantType: "refresh_token"},
			"authorization failed",
		},
		{
			"validation error",
			&upstream.ValidationError{Resource: "invoice", Err: fmt.Errorf("missing Id")},
			"invalid invoice payload",
		},
		{
			"plain error",
			fmt.Errorf("something odd"),
			"something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBridge(Config{})
			require.NoError(t, b.Register(Definition{
				Name: "failing",
				Handler: func(ctx context.Context, args map[string]any) (*Result, error) {
					return nil, tt.err
				},
			}))

			result := b.Invoke(context.Background(), "failing", nil)
			require.True(t, result.IsError, "handler failure must become a tool-level error")
			assert.Contains(t, resultText(t, result), tt.message)
		})
	}
}

func TestToolsReturnsRegistrationOrder(t *testing.T) {
	b := NewBridge(Config{})
	require.NoError(t, b.Register(echoDefinition("b-tool"), echoDefinition("a-tool")))

	defs := b.Tools()
	require.Len(t, defs, 2)
	assert.Equal(t, "b-tool", defs[0].Name)
	assert.Equal(t, "a-tool", defs[1].Name)
}

func TestInvokeRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	inst, err := instrumentation.New(instrumentation.Config{TracerProvider: provider})
	require.NoError(t, err)

	b := NewBridge(Config{Instrumentation: inst})
	require.NoError(t, b.Register(echoDefinition("echo")))

	result := b.Invoke(context.Background(), "echo", map[string]any{"subject": "hi"})
	require.False(t, result.IsError)

	result = b.Invoke(context.Background(), "missing", nil)
	require.True(t, result.IsError)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "tools.invoke", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	attrs := map[string]string{}
	for _, attr := range spans[0].Attributes {
		attrs[string(attr.Key)] = attr.Value.AsString()
	}
	assert.Equal(t, "echo", attrs[instrumentation.AttrToolName])
	assert.Equal(t, "success", attrs[instrumentation.AttrOutcome])
}
