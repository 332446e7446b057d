// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"

	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

// CredentialStore implements session.CredentialStore with a guarded value.
// Thread-safe for concurrent access. Used by --ephemeral runs and tests;
// nothing survives the process.
type CredentialStore struct {
	mu    sync.RWMutex
	creds *session.Credentials
}

var _ session.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// NewCredentialStoreWith creates a store pre-loaded with creds.
func NewCredentialStoreWith(creds session.Credentials) *CredentialStore {
	return &CredentialStore{creds: &creds}
}

// Load returns a copy of the stored pair.
func (s *CredentialStore) Load(_ context.Context) (session.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return session.Credentials{}, session.ErrNoCredentials
	}
	return *s.creds, nil
}

// Save replaces the pair.
func (s *CredentialStore) Save(ctx context.Context, creds session.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = &creds
	return nil
}

// Clear drops the pair.
func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}
