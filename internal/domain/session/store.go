package session

import (
	"context"
	"errors"
)

// CredentialStore persists the credential pair.
// This interface is defined in the domain to avoid circular imports.
// Implementations: file (default), sqlite, bbolt, valkey, in-memory (test).
//
// Save and Clear must replace or remove both keys in one operation so that a
// reader never observes a new access token next to an old refresh token.
type CredentialStore interface {
	// Load returns the stored pair.
	// Returns ErrNoCredentials if nothing has been stored.
	Load(ctx context.Context) (Credentials, error)

	// Save replaces both tokens.
	Save(ctx context.Context, creds Credentials) error

	// Clear removes both tokens. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// ErrNoCredentials is returned when the store holds no credential pair.
var ErrNoCredentials = errors.New("no stored credentials")

// ErrSessionChanged is returned by Session.UpdateAccess when the refresh
// token that was exchanged is no longer the current one.
var ErrSessionChanged = errors.New("session changed during token refresh")
