package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/bolt"
	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/sqlite"
	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/state"
	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/valkey"
	"github.com/Sentinel-Gate/storefront/internal/config"
	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

// OpenCredentialStore opens the credential backend selected by cfg.
// Stores holding resources implement io.Closer.
func OpenCredentialStore(ctx context.Context, cfg config.SessionConfig, logger *slog.Logger) (session.CredentialStore, error) {
	if cfg.UsesLocalFile() {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	switch cfg.Backend {
	case config.BackendFile:
		return state.NewFileCredentialStore(cfg.Path, logger), nil
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBolt:
		// Another storefront process holds the lock while it runs.
		s, err := bolt.Open(cfg.Path, &bbolt.Options{Timeout: 2 * time.Second})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendValkey:
		s, err := valkey.Dial(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMemory:
		return memory.NewCredentialStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
