// Package memory provides an in-memory ClientStore implementation. It is
// suitable for single-process deployments where registered clients do not
// need to survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/giantswarm/mcp-backoffice/storage"
)

// Store is an in-memory client store.
type Store struct {
	mu      sync.RWMutex
	clients map[string]*storage.Client
}

var _ storage.ClientStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{clients: make(map[string]*storage.Client)}
}

// SaveClient stores a new client.
func (s *Store) SaveClient(_ context.Context, client *storage.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return storage.ErrAlreadyExists
	}
	c := *client
	s.clients[client.ID] = &c
	return nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *client
	return &c, nil
}

// DeleteClient removes a client.
func (s *Store) DeleteClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[clientID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.clients, clientID)
	return nil
}

// CountClients returns the number of registered clients.
func (s *Store) CountClients(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), nil
}
