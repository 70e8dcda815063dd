// Package microsoft implements the vendors.TokenExchanger interface for the
// Microsoft identity platform. The broker acts as a public client: client
// credentials go into the form body (never a Basic header) and the token
// endpoint is scoped to the configured tenant.
package microsoft

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-backoffice/vendors"
)

// Compile-time check that Exchanger implements the vendors.TokenExchanger interface.
var _ vendors.TokenExchanger = (*Exchanger)(nil)

// vendorName is the name returned by Exchanger.Name().
const vendorName = "microsoft"

// loginBaseURL is the Microsoft identity platform host. Endpoints are built
// per tenant under it.
const loginBaseURL = "https://login.microsoftonline.com"

// DefaultTenant is used when no tenant ID is configured. The "common"
// endpoint accepts both work/school and personal accounts.
const DefaultTenant = "common"

// RefreshTokenHeader is the inbound header carrying the agent's Microsoft
// refresh token.
const RefreshTokenHeader = "X-Microsoft-Refresh-Token"

// defaultScopes is the scope set requested when the caller supplies none.
// offline_access is required for the vendor to issue refresh tokens.
var defaultScopes = []string{"offline_access", "User.Read", "Calendars.ReadWrite"}

// Exchanger performs token grants against the tenant-scoped Microsoft token
// endpoint.
type Exchanger struct {
	clientID       string
	clientSecret   string
	tenantID       string
	httpClient     *http.Client
	requestTimeout time.Duration

	// loginBase defaults to the Microsoft identity platform host; overridable
	// in tests.
	loginBase string
}

// Config holds Microsoft OAuth configuration.
type Config struct {
	// ClientID is the app registration's client ID.
	ClientID string

	// ClientSecret is optional; pure public clients omit it. When present it
	// is sent in the form body per the Microsoft convention.
	ClientSecret string

	// TenantID selects the tenant-scoped endpoint (default: "common").
	TenantID string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout for token-endpoint calls (default: 30s).
	RequestTimeout time.Duration
}

// NewExchanger creates a new Microsoft token exchanger.
func NewExchanger(cfg *Config) (*Exchanger, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	tenantID := cfg.TenantID
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	return &Exchanger{
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		tenantID:       tenantID,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		loginBase:      loginBaseURL,
	}, nil
}

// Name returns the vendor name.
func (e *Exchanger) Name() string {
	return vendorName
}

// AuthorizationEndpoint returns the tenant-scoped authorization URL.
func (e *Exchanger) AuthorizationEndpoint() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", e.loginBase, e.tenantID)
}

// TokenEndpoint returns the tenant-scoped token URL.
func (e *Exchanger) TokenEndpoint() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", e.loginBase, e.tenantID)
}

// ClientID returns the broker's client ID at Microsoft.
func (e *Exchanger) ClientID() string {
	return e.clientID
}

// Scopes returns the advertised Microsoft Graph scopes.
func (e *Exchanger) Scopes() []string {
	scopes := make([]string, len(defaultScopes))
	copy(scopes, defaultScopes)
	return scopes
}

// CodeChallengeMethods returns the PKCE methods the Microsoft identity
// platform accepts.
func (e *Exchanger) CodeChallengeMethods() []string {
	return []string{"S256"}
}

// RefreshTokenHeader returns the inbound refresh-token header name.
func (e *Exchanger) RefreshTokenHeader() string {
	return RefreshTokenHeader
}

// ensureContextTimeout ensures the context has a deadline, adding one if needed.
func (e *Exchanger) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.requestTimeout)
}

// ExchangeAuthorizationCode performs the authorization_code grant. The PKCE
// code verifier is forwarded verbatim when present.
func (e *Exchanger) ExchangeAuthorizationCode(ctx context.Context, code, redirectURI, codeVerifier, scope string) (*oauth2.Token, error) {
	ctx, cancel := e.ensureContextTimeout(ctx)
	defer cancel()

	if scope == "" {
		scope = strings.Join(defaultScopes, " ")
	}

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
		"client_id":    {e.clientID},
		"scope":        {scope},
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}
	if e.clientSecret != "" {
		form.Set("client_secret", e.clientSecret)
	}

	return vendors.PostTokenForm(ctx, e.httpClient, e.TokenEndpoint(), form, nil, "authorization_code")
}

// RefreshAccessToken performs the refresh_token grant. Microsoft may return a
// new refresh token; when it does not, the old one stays valid.
func (e *Exchanger) RefreshAccessToken(ctx context.Context, refreshToken, scope string) (*oauth2.Token, error) {
	ctx, cancel := e.ensureContextTimeout(ctx)
	defer cancel()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {e.clientID},
	}
	if scope != "" {
		form.Set("scope", scope)
	}
	if e.clientSecret != "" {
		form.Set("client_secret", e.clientSecret)
	}

	return vendors.PostTokenForm(ctx, e.httpClient, e.TokenEndpoint(), form, nil, "refresh_token")
}
