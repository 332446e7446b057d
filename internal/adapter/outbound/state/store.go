package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

// FileCredentialStore keeps the credential pair in a JSON file.
// It provides atomic writes (write-tmp-then-rename) and file locking (flock
// for cross-process, mutex for in-process) so two CLI invocations never
// interleave a token write. Replaced tokens are not kept anywhere on disk.
type FileCredentialStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ session.CredentialStore = (*FileCredentialStore)(nil)

// NewFileCredentialStore creates a store for the given file path.
func NewFileCredentialStore(path string, logger *slog.Logger) *FileCredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCredentialStore{
		path:   path,
		logger: logger,
	}
}

// Load reads the stored pair.
// Returns session.ErrNoCredentials if the file does not exist.
// Warns if the file has permissions more open than 0600.
func (s *FileCredentialStore) Load(_ context.Context) (session.Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return session.Credentials{}, session.ErrNoCredentials
		}
		return session.Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	// Skip on Windows where Unix file permission bits are not supported.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 {
				s.logger.Warn("credentials file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var doc CredentialsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return session.Credentials{}, fmt.Errorf("parse credentials file: %w", err)
	}
	if doc.AccessToken == "" && doc.RefreshToken == "" {
		return session.Credentials{}, session.ErrNoCredentials
	}

	return session.Credentials{Access: doc.AccessToken, Refresh: doc.RefreshToken}, nil
}

// Save replaces both tokens in one atomic file write.
//
// The write sequence is:
//  1. Acquire in-process mutex
//  2. Acquire flock on path+".lock"
//  3. Write to path+".tmp" with 0600 permissions
//  4. Fsync the temp file
//  5. Rename path+".tmp" -> path
//  6. Remove a path+".bak" left by older versions
func (s *FileCredentialStore) Save(_ context.Context, creds session.Credentials) error {
	doc := CredentialsFile{
		Version:      currentVersion,
		AccessToken:  creds.Access,
		RefreshToken: creds.Refresh,
		UpdatedAt:    time.Now().UTC(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	data = append(data, '\n')

	return s.withLock(func() error {
		if err := s.writeAtomic(data); err != nil {
			return err
		}
		if err := os.Remove(s.path + ".bak"); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove stale credentials backup", "error", err)
		}

		// Rename keeps the temp file's mode, but an older file may have been
		// created looser by hand.
		if err := os.Chmod(s.path, 0600); err != nil {
			s.logger.Warn("failed to set permissions on credentials file", "error", err)
		}

		s.logger.Debug("credentials saved", "path", s.path)
		return nil
	})
}

// Clear removes the credentials file and any stale backup.
func (s *FileCredentialStore) Clear(_ context.Context) error {
	return s.withLock(func() error {
		for _, p := range []string{s.path, s.path + ".bak"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
			}
		}
		s.logger.Debug("credentials cleared", "path", s.path)
		return nil
	})
}

// withLock runs fn holding both the in-process mutex and the cross-process
// file lock. The parent directory is created on first use.
func (s *FileCredentialStore) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	return fn()
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it
// over the target path. On any error the temp file is cleaned up.
func (s *FileCredentialStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to credentials: %w", err)
	}
	return nil
}
