// Package bolt provides a BBolt-backed credential store.
package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

var bucketName = []byte("credentials")

// Store implements session.CredentialStore backed by a BBolt database.
// Both tokens live in one bucket and are written in one update transaction.
type Store struct {
	db *bbolt.DB
}

var _ session.CredentialStore = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// Open opens a BBolt database at path and returns a Store over it.
func Open(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(_ context.Context) (session.Credentials, error) {
	var creds session.Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return session.ErrNoCredentials
		}
		creds.Access = string(b.Get([]byte(session.AccessTokenKey)))
		creds.Refresh = string(b.Get([]byte(session.RefreshTokenKey)))
		if creds.Access == "" && creds.Refresh == "" {
			return session.ErrNoCredentials
		}
		return nil
	})
	if err != nil {
		return session.Credentials{}, err
	}
	return creds, nil
}

func (s *Store) Save(_ context.Context, creds session.Credentials) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(session.AccessTokenKey), []byte(creds.Access)); err != nil {
			return err
		}
		return b.Put([]byte(session.RefreshTokenKey), []byte(creds.Refresh))
	})
}

func (s *Store) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(session.AccessTokenKey)); err != nil {
			return err
		}
		return b.Delete([]byte(session.RefreshTokenKey))
	})
}
