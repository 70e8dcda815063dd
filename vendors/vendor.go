package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenExchanger performs the authorization-code and refresh-token grants
// against one vendor's token endpoint. Implementations are stateless across
// invocations; the only side effect is the network call itself.
type TokenExchanger interface {
	// Name returns the vendor name (e.g., "quickbooks", "microsoft").
	Name() string

	// AuthorizationEndpoint returns the vendor authorization URL that the
	// /authorize proxy redirects to.
	AuthorizationEndpoint() string

	// ClientID returns the broker's client ID at this vendor. The /authorize
	// proxy substitutes it for the caller-supplied client_id.
	ClientID() string

	// Scopes returns the vendor scope list advertised in the discovery
	// document.
	Scopes() []string

	// CodeChallengeMethods returns the PKCE challenge methods the vendor
	// accepts, advertised in the discovery document.
	CodeChallengeMethods() []string

	// RefreshTokenHeader returns the inbound header carrying the agent's
	// refresh token for this vendor.
	RefreshTokenHeader() string

	// ExchangeAuthorizationCode performs the authorization_code grant.
	// codeVerifier is forwarded verbatim when non-empty; the vendor verifies
	// it against the challenge from the original /authorize redirect.
	ExchangeAuthorizationCode(ctx context.Context, code, redirectURI, codeVerifier, scope string) (*oauth2.Token, error)

	// RefreshAccessToken performs the refresh_token grant.
	RefreshAccessToken(ctx context.Context, refreshToken, scope string) (*oauth2.Token, error)
}

// OAuthError carries a vendor token-endpoint failure for transparent
// passthrough to the OAuth boundary caller. Body is always valid JSON: parsed
// vendor payloads pass through unchanged, anything else is wrapped into a
// standard OAuth error object.
type OAuthError struct {
	// Status is the upstream HTTP status, clamped to the passthrough
	// allow-list (400 when the vendor returned something unexpected).
	Status int

	// Body is the vendor's error payload.
	Body json.RawMessage

	// GrantType is the grant that failed ("authorization_code" or
	// "refresh_token").
	GrantType string
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s grant failed with status %d: %s", e.GrantType, e.Status, string(e.Body))
}

// passthroughStatuses is the fixed set of vendor statuses passed through the
// /token edge unchanged. Anything outside it clamps to 400.
var passthroughStatuses = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusNotFound:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
}

// ClampStatus maps a vendor HTTP status onto the passthrough allow-list.
func ClampStatus(status int) int {
	if passthroughStatuses[status] {
		return status
	}
	return http.StatusBadRequest
}

// maxErrorBodySize bounds how much of a vendor error payload is retained.
const maxErrorBodySize = 64 << 10

// BasicAuth holds client credentials sent via an HTTP Basic header.
type BasicAuth struct {
	Username string
	Password string
}

// tokenResponse is the vendor token-endpoint success payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// PostTokenForm issues a token-endpoint POST and decodes the response into an
// oauth2.Token. Non-2xx responses become an *OAuthError carrying the vendor's
// status (clamped) and error body. auth is nil for public clients.
func PostTokenForm(ctx context.Context, client *http.Client, endpoint string, form url.Values, auth *BasicAuth, grantType string) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newOAuthError(resp.StatusCode, body, grantType)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	extra := map[string]interface{}{"expires_in": tr.ExpiresIn}
	if tr.Scope != "" {
		extra["scope"] = tr.Scope
	}
	return tok.WithExtra(extra), nil
}

// newOAuthError builds the passthrough error for a non-2xx vendor response.
// JSON payloads pass through verbatim; anything else is wrapped into a
// standard OAuth error object so the body stays machine-readable.
func newOAuthError(status int, body []byte, grantType string) *OAuthError {
	e := &OAuthError{
		Status:    ClampStatus(status),
		GrantType: grantType,
	}
	if json.Valid(body) && len(body) > 0 {
		e.Body = json.RawMessage(body)
		return e
	}
	wrapped, err := json.Marshal(map[string]string{
		"error":             "invalid_grant",
		"error_description": strings.TrimSpace(string(body)),
	})
	if err != nil {
		wrapped = []byte(`{"error":"invalid_grant"}`)
	}
	e.Body = wrapped
	return e
}
