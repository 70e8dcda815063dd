package backoffice

import (
	"log/slog"

	"github.com/giantswarm/mcp-backoffice/instrumentation"
	"github.com/giantswarm/mcp-backoffice/session"
	"github.com/giantswarm/mcp-backoffice/storage"
	"github.com/giantswarm/mcp-backoffice/vendors"
)

// Config holds the configuration of one vendor edge: the OAuth endpoints and
// the inbound session boundary for a single upstream vendor.
type Config struct {
	// Issuer is the broker's externally visible base URL (required).
	Issuer string

	// BasePath is the vendor mount point, e.g. "/quickbooks". Endpoints are
	// served beneath it. Empty mounts at the root.
	BasePath string

	// Exchanger performs the vendor token-endpoint grants (required).
	Exchanger vendors.TokenExchanger

	// Clients persists dynamically registered OAuth clients (required).
	Clients storage.ClientStore

	// Sessions resolves inbound header credentials to live sessions
	// (required).
	Sessions *session.Manager

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation records OAuth edge metrics (optional).
	Instrumentation *instrumentation.Instrumentation
}
