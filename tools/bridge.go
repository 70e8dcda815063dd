// Package tools maps declared operation names and parameter schemas to
// authenticated vendor calls, returning a uniform result envelope to the
// calling agent. The catalog is a static table built at startup; no handler
// runs on unvalidated input.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mcp-backoffice/instrumentation"
	"github.com/giantswarm/mcp-backoffice/upstream"
	"github.com/giantswarm/mcp-backoffice/vendors"
)

// Parameter types supported by tool schemas.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

// Param declares one tool parameter: its type, whether it is required, and
// an optional default applied when the caller omits it.
type Param struct {
	Name        string
	Description string
	Type        string
	Required    bool
	Default     any

	// Items is the JSON schema of array elements, used only for TypeArray.
	Items map[string]any
}

// Result is a successful tool outcome: a human-readable summary plus the
// structured payload rendered into the envelope.
type Result struct {
	Summary string
	Payload any
}

// HandlerFunc executes one tool operation with validated arguments. The
// session credential travels in the context.
type HandlerFunc func(ctx context.Context, args map[string]any) (*Result, error)

// Definition binds an operation name to its parameter schema and handler.
type Definition struct {
	Name        string
	Description string
	Params      []Param
	Handler     HandlerFunc
}

// Bridge holds the registered tool catalog and dispatches invocations.
//
// Register is startup-only; the catalog is immutable afterward and Invoke
// may be called concurrently.
type Bridge struct {
	defs   map[string]*Definition
	order  []string
	logger *slog.Logger
	instr  *instrumentation.Instrumentation
	tracer trace.Tracer
}

// Config holds bridge configuration.
type Config struct {
	// Logger for structured logging (optional).
	Logger *slog.Logger

	// Instrumentation records invocation metrics (optional).
	Instrumentation *instrumentation.Instrumentation
}

// NewBridge creates an empty tool bridge.
func NewBridge(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var tracer trace.Tracer
	if cfg.Instrumentation != nil {
		tracer = cfg.Instrumentation.Tracer("tools")
	}
	return &Bridge{
		defs:   make(map[string]*Definition),
		logger: logger,
		instr:  cfg.Instrumentation,
		tracer: tracer,
	}
}

// Register adds definitions to the catalog. Names must be unique and every
// definition needs a handler.
func (b *Bridge) Register(defs ...Definition) error {
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("tool name is required")
		}
		if def.Handler == nil {
			return fmt.Errorf("tool %q has no handler", def.Name)
		}
		if _, exists := b.defs[def.Name]; exists {
			return fmt.Errorf("tool %q is already registered", def.Name)
		}
		for _, p := range def.Params {
			switch p.Type {
			case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray:
			default:
				return fmt.Errorf("tool %q parameter %q has unknown type %q", def.Name, p.Name, p.Type)
			}
		}
		d := def
		b.defs[def.Name] = &d
		b.order = append(b.order, def.Name)
	}
	return nil
}

// Tools returns the registered definitions in registration order.
func (b *Bridge) Tools() []*Definition {
	defs := make([]*Definition, 0, len(b.order))
	for _, name := range b.order {
		defs = append(defs, b.defs[name])
	}
	return defs
}

// Invoke validates the raw arguments against the named tool's schema, runs
// its handler, and wraps the outcome into the result envelope. Failures of
// any kind become a tool-level error result, never a transport error, so one
// failed operation does not tear down the agent session.
func (b *Bridge) Invoke(ctx context.Context, name string, rawArgs map[string]any) *mcp.CallToolResult {
	start := time.Now()

	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.Start(ctx, "tools.invoke")
		defer span.End()
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrToolName, name))
	}

	def, ok := b.defs[name]
	if !ok {
		b.record(ctx, name, "not_found", start)
		instrumentation.SetSpanError(span, "tool not found")
		return mcp.NewToolResultError(fmt.Sprintf("tool not found: %s", name))
	}

	args, err := validateArgs(def, rawArgs)
	if err != nil {
		b.record(ctx, name, "invalid_arguments", start)
		instrumentation.SetSpanError(span, "invalid arguments")
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}

	result, err := def.Handler(ctx, args)
	if err != nil {
		outcome, msg := classify(err)
		b.logger.Warn("Tool invocation failed", "tool", name, "outcome", outcome, "error", err)
		b.record(ctx, name, outcome, start)
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrOutcome, outcome))
		instrumentation.RecordError(span, err)
		return mcp.NewToolResultError(msg)
	}

	b.record(ctx, name, "success", start)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrOutcome, "success"))
	instrumentation.SetSpanSuccess(span)
	return mcp.NewToolResultText(envelope(result))
}

// AttachTo registers the catalog on an MCP server.
func (b *Bridge) AttachTo(srv *server.MCPServer) {
	for _, name := range b.order {
		def := b.defs[name]
		srv.AddTool(newTool(def), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return b.Invoke(ctx, def.Name, request.GetArguments()), nil
		})
	}
}

// newTool translates a definition into its MCP tool declaration.
func newTool(def *Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	for _, p := range def.Params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}

		switch p.Type {
		case TypeString:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		case TypeInteger, TypeNumber:
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		case TypeArray:
			if p.Items != nil {
				propOpts = append(propOpts, mcp.Items(p.Items))
			}
			opts = append(opts, mcp.WithArray(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(def.Name, opts...)
}

// validateArgs checks raw arguments against the schema: unknown arguments are
// rejected, required ones enforced, types checked, and defaults applied.
func validateArgs(def *Definition, raw map[string]any) (map[string]any, error) {
	byName := make(map[string]*Param, len(def.Params))
	for i := range def.Params {
		byName[def.Params[i].Name] = &def.Params[i]
	}

	for name := range raw {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("unknown argument %q", name)
		}
	}

	args := make(map[string]any, len(def.Params))
	for _, p := range def.Params {
		value, present := raw[p.Name]
		if !present || value == nil {
			if p.Required {
				return nil, fmt.Errorf("missing required argument %q", p.Name)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(&p, value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		args[p.Name] = coerced
	}
	return args, nil
}

// coerce checks one argument value against its declared type. JSON numbers
// arrive as float64; integer parameters additionally require a whole value.
func coerce(p *Param, value any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil
	case TypeInteger:
		f, ok := value.(float64)
		if !ok {
			if i, isInt := value.(int); isInt {
				return i, nil
			}
			return nil, fmt.Errorf("expected integer, got %T", value)
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		return int(f), nil
	case TypeNumber:
		f, ok := value.(float64)
		if !ok {
			if i, isInt := value.(int); isInt {
				return float64(i), nil
			}
			return nil, fmt.Errorf("expected number, got %T", value)
		}
		return f, nil
	case TypeBoolean:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
		return v, nil
	case TypeArray:
		v, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", value)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown parameter type %q", p.Type)
}

// envelope renders a successful result: the summary line followed by the
// pretty-printed payload.
func envelope(result *Result) string {
	if result.Payload == nil {
		return result.Summary
	}
	payload, err := json.MarshalIndent(result.Payload, "", "  ")
	if err != nil {
		return result.Summary
	}
	return result.Summary + "\n\n" + string(payload)
}

// classify maps a handler error to a metric outcome and the message shown to
// the agent. Raw stack traces never reach the caller.
func classify(err error) (outcome, message string) {
	var oauthErr *vendors.OAuthError
	if errors.As(err, &oauthErr) {
		return "oauth_error", fmt.Sprintf("authorization failed: %v", oauthErr)
	}

	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		return "upstream_error", fmt.Sprintf("upstream API error: %d %s", apiErr.Status, apiErr.StatusText)
	}

	var valErr *upstream.ValidationError
	if errors.As(err, &valErr) {
		return "validation_error", valErr.Error()
	}

	return "error", err.Error()
}

func (b *Bridge) record(ctx context.Context, tool, outcome string, start time.Time) {
	if b.instr != nil {
		b.instr.Metrics().RecordToolInvocation(ctx, tool, outcome, time.Since(start))
	}
}
