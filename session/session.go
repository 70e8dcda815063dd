// Package session holds the per-agent-session credential state for a linked
// vendor account. A Credential is created when the agent presents its tokens,
// mutated in place on refresh, and destroyed with the session. It is never
// persisted.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Refresher performs a refresh-token grant against the vendor token endpoint.
// It is the narrow slice of the vendor exchanger a credential needs.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken, scope string) (*oauth2.Token, error)
}

// Credential is the access/refresh token pair owned by one agent session.
//
// All reads and writes go through the embedded mutex. The refresh token
// rotates only when the vendor returns a new one; otherwise the old refresh
// token remains valid and is kept.
type Credential struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiry       time.Time
	scope        string

	// onRotate is invoked (with the mutex held) when the vendor rotates the
	// refresh token, so the owning Manager can keep the session resolvable
	// under the token the agent originally presented.
	onRotate func(newRefreshToken string)
}

// New creates a credential from the tokens the agent presented.
func New(accessToken, refreshToken string) *Credential {
	return &Credential{
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// FromToken creates a credential from a vendor token response.
func FromToken(tok *oauth2.Token) *Credential {
	c := &Credential{}
	c.applyLocked(tok)
	return c
}

// AccessToken returns the current access token.
func (c *Credential) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// RefreshToken returns the current refresh token.
func (c *Credential) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken
}

// Expiry returns the access token expiry, or the zero time when the vendor
// did not report one.
func (c *Credential) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

// Scope returns the scope granted by the vendor, if reported.
func (c *Credential) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Update replaces the credential state from a vendor token response.
func (c *Credential) Update(tok *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyLocked(tok)
}

// applyLocked applies a token response. Caller must hold c.mu.
func (c *Credential) applyLocked(tok *oauth2.Token) {
	c.accessToken = tok.AccessToken
	c.expiry = tok.Expiry
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		c.scope = scope
	}
	if tok.RefreshToken != "" && tok.RefreshToken != c.refreshToken {
		c.refreshToken = tok.RefreshToken
		if c.onRotate != nil {
			c.onRotate(tok.RefreshToken)
		}
	}
}

// RefreshWith refreshes the credential through the given refresher, holding
// the session lock for the whole refresh-and-update so concurrent invocations
// on the same session serialize.
//
// staleAccessToken is the token the caller observed failing with a 401. If a
// concurrent invocation already replaced it, the network refresh is skipped
// and the caller retries with the rotated token.
func (c *Credential) RefreshWith(ctx context.Context, r Refresher, staleAccessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != staleAccessToken {
		// Another invocation refreshed while we waited for the lock.
		return nil
	}
	if c.refreshToken == "" {
		return fmt.Errorf("no refresh token held for session")
	}

	tok, err := r.RefreshAccessToken(ctx, c.refreshToken, c.scope)
	if err != nil {
		return err
	}
	c.applyLocked(tok)
	return nil
}

// Manager resolves inbound header credentials to live sessions.
//
// Sessions are keyed by the refresh token the agent presents. When the vendor
// rotates a refresh token mid-session, the new token is added as an alias so
// later requests carrying either value resolve to the same credential.
type Manager struct {
	mu        sync.Mutex
	byRefresh map[string]*Credential
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{byRefresh: make(map[string]*Credential)}
}

// Resolve returns the session credential for the presented token pair,
// creating it on first sight.
func (m *Manager) Resolve(accessToken, refreshToken string) *Credential {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.byRefresh[refreshToken]; ok {
		return c
	}
	c := New(accessToken, refreshToken)
	c.onRotate = func(rotated string) {
		m.mu.Lock()
		m.byRefresh[rotated] = c
		m.mu.Unlock()
	}
	m.byRefresh[refreshToken] = c
	return c
}

// Destroy drops the session resolved by the given refresh token, including
// any rotation aliases pointing at the same credential.
func (m *Manager) Destroy(refreshToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byRefresh[refreshToken]
	if !ok {
		return
	}
	for key, cred := range m.byRefresh {
		if cred == c {
			delete(m.byRefresh, key)
		}
	}
}

// Len returns the number of resolvable session keys, aliases included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byRefresh)
}

type contextKey struct{}

// NewContext returns a context carrying the session credential. The inbound
// boundary attaches it after validating the agent's headers.
func NewContext(ctx context.Context, c *Credential) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the session credential attached by the inbound boundary.
func FromContext(ctx context.Context) (*Credential, bool) {
	c, ok := ctx.Value(contextKey{}).(*Credential)
	return c, ok
}
