package backoffice

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-backoffice/instrumentation"
	"github.com/giantswarm/mcp-backoffice/storage"
	"github.com/giantswarm/mcp-backoffice/vendors"
)

// maxRegistrationBodySize bounds the registration request payload.
const maxRegistrationBodySize = 64 << 10

// handleMetadata serves the RFC 8414 discovery document for this vendor edge.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	base := s.config.Issuer + s.config.BasePath

	metadata := AuthorizationServerMetadata{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		RegistrationEndpoint:              base + "/register",
		ScopesSupported:                   s.exchanger.Scopes(),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{"none"},
		CodeChallengeMethodsSupported:     s.exchanger.CodeChallengeMethods(),
	}

	writeJSON(w, http.StatusOK, metadata)
}

// handleAuthorize proxies the authorization request to the vendor. All query
// parameters pass through unchanged except client_id, which is replaced with
// the broker's own vendor client ID. The PKCE challenge travels with the rest
// of the query; the broker never inspects it.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var span trace.Span
	if s.tracer != nil {
		var ctx context.Context
		ctx, span = s.tracer.Start(r.Context(), "oauth.http.authorization")
		defer span.End()
		r = r.WithContext(ctx)
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrVendor, s.exchanger.Name()))
	}

	query := r.URL.Query()
	query.Set("client_id", s.exchanger.ClientID())

	target := s.exchanger.AuthorizationEndpoint() + "?" + query.Encode()
	s.logger.Debug("Proxying authorization request", "redirect_uri", query.Get("redirect_uri"))
	instrumentation.SetSpanSuccess(span)
	http.Redirect(w, r, target, http.StatusFound)
}

// handleToken serves the token endpoint. Vendor responses pass through
// verbatim, including error bodies with their (clamped) status codes.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var span trace.Span
	if s.tracer != nil {
		var ctx context.Context
		ctx, span = s.tracer.Start(r.Context(), "oauth.http.token")
		defer span.End()
		r = r.WithContext(ctx)
	}

	if err := r.ParseForm(); err != nil {
		instrumentation.SetSpanError(span, "malformed form body")
		writeError(w, ErrInvalidRequest("failed to parse form body"))
		return
	}

	grantType := r.PostFormValue("grant_type")
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrVendor, s.exchanger.Name()),
		attribute.String(instrumentation.AttrGrantType, grantType))

	switch grantType {
	case "authorization_code":
		s.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		s.handleRefreshTokenGrant(w, r)
	default:
		instrumentation.SetSpanError(span, "unsupported grant type")
		writeError(w, ErrUnsupportedGrantType(fmt.Sprintf("grant type %q is not supported", grantType)))
	}
}

func (s *Server) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")
	if code == "" {
		instrumentation.SetSpanError(trace.SpanFromContext(r.Context()), "code missing")
		writeError(w, ErrInvalidRequest("code is required"))
		return
	}
	redirectURI := r.PostFormValue("redirect_uri")
	codeVerifier := r.PostFormValue("code_verifier")
	scope := r.PostFormValue("scope")

	tok, err := s.exchanger.ExchangeAuthorizationCode(r.Context(), code, redirectURI, codeVerifier, scope)
	if err != nil {
		s.recordExchange(r, "authorization_code", false)
		s.writeGrantFailure(w, r, "authorization_code", err)
		return
	}
	s.recordExchange(r, "authorization_code", true)
	instrumentation.SetSpanSuccess(trace.SpanFromContext(r.Context()))

	// Pre-register the session so the first tool call resolves to the same
	// credential that later refreshes mutate.
	if tok.RefreshToken != "" {
		s.sessions.Resolve(tok.AccessToken, tok.RefreshToken)
	}

	s.logger.Info("Exchanged authorization code", "scope", scope)
	writeJSON(w, http.StatusOK, tokenResponseFrom(tok))
}

func (s *Server) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.PostFormValue("refresh_token")
	if refreshToken == "" {
		instrumentation.SetSpanError(trace.SpanFromContext(r.Context()), "refresh_token missing")
		writeError(w, ErrInvalidRequest("refresh_token is required"))
		return
	}
	scope := r.PostFormValue("scope")

	tok, err := s.exchanger.RefreshAccessToken(r.Context(), refreshToken, scope)
	if err != nil {
		s.recordExchange(r, "refresh_token", false)
		s.writeGrantFailure(w, r, "refresh_token", err)
		return
	}
	s.recordExchange(r, "refresh_token", true)
	instrumentation.SetSpanSuccess(trace.SpanFromContext(r.Context()))

	// Keep the live session in step with the tokens handed to the agent,
	// including any rotation alias.
	cred := s.sessions.Resolve(tok.AccessToken, refreshToken)
	cred.Update(tok)

	s.logger.Info("Refreshed access token")
	writeJSON(w, http.StatusOK, tokenResponseFrom(tok))
}

// writeGrantFailure reports a failed grant. Vendor failures pass through with
// the vendor's status and body; anything else is a broker-side server error.
func (s *Server) writeGrantFailure(w http.ResponseWriter, r *http.Request, grantType string, err error) {
	instrumentation.RecordError(trace.SpanFromContext(r.Context()), err)

	var oauthErr *vendors.OAuthError
	if errors.As(err, &oauthErr) {
		s.logger.Warn("Vendor rejected grant", "grant_type", grantType, "status", oauthErr.Status)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(oauthErr.Status)
		_, _ = w.Write(oauthErr.Body)
		return
	}

	s.logger.Error("Grant failed", "grant_type", grantType, "error", err)
	writeError(w, ErrServerError("token exchange failed"))
}

// handleRegister serves RFC 7591 dynamic client registration. Registered
// clients default to public ("none" token endpoint auth); a secret is issued
// only when the client explicitly asks for secret-based authentication.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req ClientRegistrationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRegistrationBodySize)).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest("invalid registration payload"))
		return
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "none"
	}
	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code", "refresh_token"}
	}

	client := &storage.Client{
		ID:           uuid.NewString(),
		Name:         req.ClientName,
		RedirectURIs: req.RedirectURIs,
		GrantTypes:   grantTypes,
		Scope:        req.Scope,
		CreatedAt:    time.Now(),
	}

	var clientSecret string
	if authMethod == "client_secret_basic" || authMethod == "client_secret_post" {
		secret, err := generateSecret()
		if err != nil {
			writeError(w, ErrServerError("failed to generate client secret"))
			return
		}
		hash, err := storage.HashSecret(secret)
		if err != nil {
			writeError(w, ErrServerError("failed to hash client secret"))
			return
		}
		clientSecret = secret
		client.SecretHash = hash
	}

	if err := s.clients.SaveClient(r.Context(), client); err != nil {
		s.logger.Error("Failed to save registered client", "error", err)
		writeError(w, ErrServerError("failed to register client"))
		return
	}

	if s.instr != nil {
		s.instr.Metrics().RecordClientRegistered(r.Context())
	}
	s.logger.Info("Registered client", "client_id", client.ID, "client_name", client.Name)

	writeJSON(w, http.StatusCreated, ClientRegistrationResponse{
		ClientID:                client.ID,
		ClientSecret:            clientSecret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              client.GrantTypes,
		ClientName:              client.Name,
		Scope:                   client.Scope,
	})
}

func (s *Server) recordExchange(r *http.Request, grantType string, success bool) {
	if s.instr != nil {
		s.instr.Metrics().RecordTokenExchange(r.Context(), s.exchanger.Name(), grantType, success)
	}
}

// tokenResponseFrom maps a vendor token onto the passthrough response body.
func tokenResponseFrom(tok *oauth2.Token) TokenResponse {
	resp := TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: tok.RefreshToken,
	}
	if expiresIn, ok := tok.Extra("expires_in").(int64); ok && expiresIn > 0 {
		resp.ExpiresIn = expiresIn
	} else if !tok.Expiry.IsZero() {
		resp.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	return resp
}

// generateSecret produces a random client secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a broker edge error as an OAuth error body.
func writeError(w http.ResponseWriter, err *Error) {
	writeJSON(w, err.Status, ErrorResponse{
		Error:            err.Code,
		ErrorDescription: err.Description,
	})
}
