// Package sqlite provides a SQLite-backed credential store using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Store implements session.CredentialStore on a key/value table.
// Both keys are written in one transaction.
type Store struct {
	db *sql.DB
}

var _ session.CredentialStore = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer at a time; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (session.Credentials, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE key IN (?, ?)`,
		session.AccessTokenKey, session.RefreshTokenKey)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var creds session.Credentials
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return session.Credentials{}, fmt.Errorf("scanning credentials: %w", err)
		}
		switch k {
		case session.AccessTokenKey:
			creds.Access = v
		case session.RefreshTokenKey:
			creds.Refresh = v
		}
	}
	if err := rows.Err(); err != nil {
		return session.Credentials{}, fmt.Errorf("reading credentials: %w", err)
	}
	if creds.Access == "" && creds.Refresh == "" {
		return session.Credentials{}, session.ErrNoCredentials
	}
	return creds, nil
}

func (s *Store) Save(ctx context.Context, creds session.Credentials) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`
		if _, err := tx.ExecContext(ctx, upsert, session.AccessTokenKey, creds.Access); err != nil {
			return fmt.Errorf("writing access token: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsert, session.RefreshTokenKey, creds.Refresh); err != nil {
			return fmt.Errorf("writing refresh token: %w", err)
		}
		return nil
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`,
			session.AccessTokenKey, session.RefreshTokenKey)
		return err
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
