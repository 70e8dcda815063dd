// Package storage defines the persistence interface for dynamically
// registered OAuth clients. The broker never persists tokens; session
// credentials live in memory and die with the session.
package storage

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Common storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a record with the same ID exists.
	ErrAlreadyExists = errors.New("already exists")
)

// Client is a dynamically registered OAuth client. Secrets are never stored
// in plaintext; only the bcrypt hash is kept.
type Client struct {
	// ID is the generated client identifier.
	ID string

	// Name is the human-readable client name.
	Name string

	// RedirectURIs are the registered redirection URIs.
	RedirectURIs []string

	// GrantTypes are the grant types the client may use.
	GrantTypes []string

	// Scope is the space-separated scope list requested at registration.
	Scope string

	// SecretHash is the bcrypt hash of the client secret. Empty for public
	// clients.
	SecretHash []byte

	// CreatedAt is when the client was registered.
	CreatedAt time.Time
}

// Public reports whether the client was registered without a secret.
func (c *Client) Public() bool {
	return len(c.SecretHash) == 0
}

// ValidateSecret checks a presented secret against the stored hash.
func (c *Client) ValidateSecret(secret string) bool {
	if c.Public() {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.SecretHash, []byte(secret)) == nil
}

// HashSecret hashes a client secret for storage.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}

// ClientStore persists registered OAuth clients. Implementations must be
// safe for concurrent use and must be injected, never reached through
// process-wide state.
type ClientStore interface {
	// SaveClient stores a new client. Returns ErrAlreadyExists when the ID
	// is taken.
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID. Returns ErrNotFound when absent.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// DeleteClient removes a client. Returns ErrNotFound when absent.
	DeleteClient(ctx context.Context, clientID string) error

	// CountClients returns the number of registered clients.
	CountClients(ctx context.Context) (int, error)
}
