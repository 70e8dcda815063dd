// Package backoffice brokers OAuth2 access between a tool-invoking agent and
// account-linked vendor APIs. Each vendor edge serves its own discovery,
// authorization, token, and registration endpoints and guards its tool
// transport with a session boundary.
package backoffice

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mcp-backoffice/instrumentation"
	"github.com/giantswarm/mcp-backoffice/session"
	"github.com/giantswarm/mcp-backoffice/storage"
	"github.com/giantswarm/mcp-backoffice/vendors"
)

// Server is one vendor edge of the broker.
type Server struct {
	config    Config
	exchanger vendors.TokenExchanger
	clients   storage.ClientStore
	sessions  *session.Manager
	logger    *slog.Logger
	instr     *instrumentation.Instrumentation
	tracer    trace.Tracer
}

// NewServer creates a vendor edge from the given configuration.
func NewServer(config Config) (*Server, error) {
	if config.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if config.Exchanger == nil {
		return nil, fmt.Errorf("exchanger is required")
	}
	if config.Clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if config.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if config.BasePath != "" && !strings.HasPrefix(config.BasePath, "/") {
		return nil, fmt.Errorf("base path must start with /")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("vendor", config.Exchanger.Name())

	var tracer trace.Tracer
	if config.Instrumentation != nil {
		tracer = config.Instrumentation.Tracer("oauth")
	}

	return &Server{
		config:    config,
		exchanger: config.Exchanger,
		clients:   config.Clients,
		sessions:  config.Sessions,
		logger:    logger,
		instr:     config.Instrumentation,
		tracer:    tracer,
	}, nil
}

// Sessions returns the session manager of this edge.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// RegisterHandlers mounts the OAuth endpoints of this vendor edge on mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	base := s.config.BasePath
	mux.HandleFunc("GET "+base+"/.well-known/oauth-authorization-server", s.handleMetadata)
	mux.HandleFunc("GET "+base+"/authorize", s.handleAuthorize)
	mux.HandleFunc("POST "+base+"/token", s.handleToken)
	mux.HandleFunc("POST "+base+"/register", s.handleRegister)
}

// RequireSession guards the tool transport. It extracts the bearer access
// token and the vendor refresh-token header, resolves the session, and
// attaches the credential to the request context. Missing or malformed
// credentials are rejected before any tool logic runs.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, err := bearerToken(r)
		if err != nil {
			s.logger.Debug("Rejected request without bearer credential", "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, err)
			return
		}

		refreshToken := r.Header.Get(s.exchanger.RefreshTokenHeader())
		if refreshToken == "" {
			s.logger.Debug("Rejected request without refresh-token header",
				"path", r.URL.Path, "header", s.exchanger.RefreshTokenHeader())
			writeError(w, ErrInvalidToken("missing "+s.exchanger.RefreshTokenHeader()+" header"))
			return
		}

		cred := s.sessions.Resolve(accessToken, refreshToken)
		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), cred)))
	})
}

// bearerToken extracts the access token from the Authorization header.
func bearerToken(r *http.Request) (string, *Error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrInvalidToken("missing Authorization header")
	}

	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", ErrInvalidToken("Authorization header must use the Bearer scheme")
	}
	return auth[len(prefix):], nil
}
