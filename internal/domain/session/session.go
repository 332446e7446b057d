package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Event identifies a change of the credential pair.
type Event int

const (
	// EventLogin fires after a fresh pair was stored.
	EventLogin Event = iota + 1
	// EventRefreshed fires after the access token was replaced.
	EventRefreshed
	// EventLogout fires after both tokens were removed.
	EventLogout
)

// String returns the event name used in logs.
func (e Event) String() string {
	switch e {
	case EventLogin:
		return "login"
	case EventRefreshed:
		return "refreshed"
	case EventLogout:
		return "logout"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Session is the app-scoped holder of the credential pair.
//
// Reads are lock-free loads of an immutable pair. Writes persist to the
// backing store first and then swap the whole pair, so readers observe either
// the complete old pair or the complete new one. Writers are serialized.
type Session struct {
	store  CredentialStore
	logger *slog.Logger

	creds atomic.Pointer[Credentials]
	mu    sync.Mutex

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// New loads the stored pair and returns a ready Session.
// A store without credentials yields a logged-out session.
func New(ctx context.Context, store CredentialStore, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		store:  store,
		logger: logger,
		subs:   make(map[int]func(Event)),
	}

	creds, err := store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	s.creds.Store(&creds)

	logger.Debug("session loaded", "authenticated", creds.HasAccess())
	return s, nil
}

// Credentials returns a copy of the current pair.
func (s *Session) Credentials() Credentials {
	return *s.creds.Load()
}

// AccessToken returns the current access token, possibly empty.
func (s *Session) AccessToken() string {
	return s.creds.Load().Access
}

// RefreshToken returns the current refresh token, possibly empty.
func (s *Session) RefreshToken() string {
	return s.creds.Load().Refresh
}

// IsAuthenticated reports whether an access token is present.
// Presence of the access token is the only logged-in signal.
func (s *Session) IsAuthenticated() bool {
	return s.creds.Load().HasAccess()
}

// Login stores a freshly issued pair.
func (s *Session) Login(ctx context.Context, creds Credentials) error {
	if !creds.HasAccess() {
		return errors.New("login: access token missing")
	}

	s.mu.Lock()
	if err := s.store.Save(ctx, creds); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save credentials: %w", err)
	}
	s.creds.Store(&creds)
	s.mu.Unlock()

	s.logger.Info("session started")
	s.notify(EventLogin)
	return nil
}

// UpdateAccess replaces the access token obtained by exchanging usedRefresh.
// The swap happens only while usedRefresh is still the current refresh
// token; after a logout or a new login it returns ErrSessionChanged and
// leaves memory and store untouched.
func (s *Session) UpdateAccess(ctx context.Context, usedRefresh, access string) error {
	s.mu.Lock()
	cur := s.creds.Load()
	if !IsPresent(cur.Refresh) || cur.Refresh != usedRefresh {
		s.mu.Unlock()
		s.logger.Debug("discarding refreshed access token, session changed")
		return ErrSessionChanged
	}
	next := Credentials{Access: access, Refresh: cur.Refresh}
	if err := s.store.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save credentials: %w", err)
	}
	s.creds.Store(&next)
	s.mu.Unlock()

	s.logger.Debug("access token replaced")
	s.notify(EventRefreshed)
	return nil
}

// Clear removes both tokens.
// The in-memory pair is dropped even when the store fails, so a forced
// logout always takes effect for this process; the store error is returned.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	storeErr := s.store.Clear(ctx)
	s.creds.Store(&Credentials{})
	s.mu.Unlock()

	if storeErr != nil {
		s.logger.Warn("failed to clear stored credentials", "error", storeErr)
	} else {
		s.logger.Info("session cleared")
	}
	s.notify(EventLogout)

	if storeErr != nil {
		return fmt.Errorf("clear credentials: %w", storeErr)
	}
	return nil
}

// Subscribe registers fn for session events and returns a function that
// removes it. fn runs synchronously on the writer's goroutine.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) notify(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
