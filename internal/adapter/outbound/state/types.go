// Package state provides file-based persistence for the storefront
// credential pair.
//
// The credentials file holds the access and refresh tokens under their fixed
// keys. This package provides atomic writes, file locking, and backup
// functionality.
package state

import "time"

// currentVersion is the schema version written to new files.
const currentVersion = "1"

// CredentialsFile is the document persisted on disk.
type CredentialsFile struct {
	// Version is the schema version for forward compatibility. Currently "1".
	Version string `json:"version"`

	// AccessToken is stored under the access_token key.
	AccessToken string `json:"access_token,omitempty"`

	// RefreshToken is stored under the refresh_token key.
	RefreshToken string `json:"refresh_token,omitempty"`

	// UpdatedAt is when the pair was last written (UTC).
	UpdatedAt time.Time `json:"updated_at"`
}
