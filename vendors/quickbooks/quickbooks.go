// Package quickbooks implements the vendors.TokenExchanger interface for
// Intuit QuickBooks Online. QuickBooks is a confidential client: the broker
// authenticates to the token endpoint with an HTTP Basic header built from
// its client ID and secret.
package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-backoffice/vendors"
)

// Compile-time check that Exchanger implements the vendors.TokenExchanger interface.
var _ vendors.TokenExchanger = (*Exchanger)(nil)

// vendorName is the name returned by Exchanger.Name().
const vendorName = "quickbooks"

// Intuit OAuth endpoints. The token endpoint is fixed regardless of
// environment; only the resource API host differs between sandbox and
// production.
const (
	tokenEndpoint         = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	authorizationEndpoint = "https://appcenter.intuit.com/connect/oauth2"
)

// RefreshTokenHeader is the inbound header carrying the agent's QuickBooks
// refresh token.
const RefreshTokenHeader = "X-QuickBooks-Refresh-Token"

// defaultScopes is the scope set advertised for QuickBooks accounting access.
var defaultScopes = []string{"com.intuit.quickbooks.accounting"}

// Exchanger performs token grants against the Intuit token endpoint.
type Exchanger struct {
	clientID       string
	clientSecret   string
	httpClient     *http.Client
	requestTimeout time.Duration

	// tokenEndpoint defaults to the fixed Intuit endpoint; overridable in tests.
	tokenEndpoint string
}

// Config holds QuickBooks OAuth configuration.
type Config struct {
	// ClientID is the Intuit app client ID.
	ClientID string

	// ClientSecret is the Intuit app client secret.
	ClientSecret string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout for token-endpoint calls (default: 30s).
	RequestTimeout time.Duration
}

// NewExchanger creates a new QuickBooks token exchanger.
func NewExchanger(cfg *Config) (*Exchanger, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
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
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		tokenEndpoint:  tokenEndpoint,
	}, nil
}

// Name returns the vendor name.
func (e *Exchanger) Name() string {
	return vendorName
}

// AuthorizationEndpoint returns the Intuit authorization URL.
func (e *Exchanger) AuthorizationEndpoint() string {
	return authorizationEndpoint
}

// ClientID returns the broker's Intuit client ID.
func (e *Exchanger) ClientID() string {
	return e.clientID
}

// Scopes returns the advertised QuickBooks scopes.
func (e *Exchanger) Scopes() []string {
	scopes := make([]string, len(defaultScopes))
	copy(scopes, defaultScopes)
	return scopes
}

// CodeChallengeMethods returns the PKCE methods Intuit accepts.
func (e *Exchanger) CodeChallengeMethods() []string {
	return []string{"S256", "plain"}
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
// code verifier is forwarded verbatim when present; Intuit verifies it
// against the challenge from the original /authorize redirect.
func (e *Exchanger) ExchangeAuthorizationCode(ctx context.Context, code, redirectURI, codeVerifier, scope string) (*oauth2.Token, error) {
	ctx, cancel := e.ensureContextTimeout(ctx)
	defer cancel()

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}
	if scope != "" {
		form.Set("scope", scope)
	}

	return vendors.PostTokenForm(ctx, e.httpClient, e.tokenEndpoint, form, e.basicAuth(), "authorization_code")
}

// RefreshAccessToken performs the refresh_token grant. Intuit rotates the
// refresh token on every refresh and returns the new one in the response.
func (e *Exchanger) RefreshAccessToken(ctx context.Context, refreshToken, scope string) (*oauth2.Token, error) {
	ctx, cancel := e.ensureContextTimeout(ctx)
	defer cancel()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if scope != "" {
		form.Set("scope", scope)
	}

	return vendors.PostTokenForm(ctx, e.httpClient, e.tokenEndpoint, form, e.basicAuth(), "refresh_token")
}

func (e *Exchanger) basicAuth() *vendors.BasicAuth {
	return &vendors.BasicAuth{Username: e.clientID, Password: e.clientSecret}
}
