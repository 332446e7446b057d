// Package wishlist keeps a local mirror of the server-side wishlist as a set
// of product ids.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/port/outbound"
)

// ErrLoginRequired is returned by Add when the user is not signed in.
// Unlike the cart, which only raises a prompt, adding to the wishlist while
// signed out is a hard failure.
var ErrLoginRequired = errors.New("login required to use the wishlist")

// ErrClosed is returned by mutations on a closed store.
var ErrClosed = errors.New("wishlist store closed")

// Snapshot is a copy of the wishlist state.
type Snapshot struct {
	IDs      map[catalog.ProductID]struct{}
	Loading  bool
	Updating map[catalog.ProductID]bool
}

// Contains reports whether id is wishlisted.
func (s Snapshot) Contains(id catalog.ProductID) bool {
	_, ok := s.IDs[id]
	return ok
}

// Store is the wishlist state container. Mutations are confirm-then-apply:
// local state changes only after the server accepts the request.
type Store struct {
	api    outbound.WishlistAPI
	auth   outbound.AuthState
	logger *slog.Logger

	mu         sync.Mutex
	ids        map[catalog.ProductID]struct{}
	loading    int
	updating   map[catalog.ProductID]int
	generation uint64
	closed     bool

	pubMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewStore creates an empty wishlist store.
func NewStore(api outbound.WishlistAPI, auth outbound.AuthState, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:      api,
		auth:     auth,
		logger:   logger,
		ids:      make(map[catalog.ProductID]struct{}),
		updating: make(map[catalog.ProductID]int),
		subs:     make(map[int]func(Snapshot)),
	}
}

// Refresh replaces the set with the server's ids when signed in and empties
// it otherwise. Failures are logged and returned; the previous set is kept.
func (s *Store) Refresh(ctx context.Context) error {
	if !s.auth.IsAuthenticated() {
		s.Reset()
		return nil
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	ids, err := s.api.WishlistIDs(ctx)
	if err != nil {
		s.logger.Warn("wishlist refresh failed, keeping previous state", "error", err)
		return fmt.Errorf("refresh wishlist: %w", err)
	}

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.ids = make(map[catalog.ProductID]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

// Add wishlists id. It reports whether the product is now wishlisted.
func (s *Store) Add(ctx context.Context, id catalog.ProductID) (bool, error) {
	if !s.auth.IsAuthenticated() {
		return false, ErrLoginRequired
	}
	gen, ok := s.begin(id)
	if !ok {
		return false, ErrClosed
	}

	err := s.api.AddToWishlist(ctx, id)

	s.settle(id, gen, err, func() { s.ids[id] = struct{}{} })
	if err != nil {
		s.logger.Warn("wishlist add failed", "product_id", id, "error", err)
		return false, fmt.Errorf("add product %d to wishlist: %w", id, err)
	}
	return true, nil
}

// Remove un-wishlists id. Signed out it returns false without a request.
func (s *Store) Remove(ctx context.Context, id catalog.ProductID) (bool, error) {
	if !s.auth.IsAuthenticated() {
		return false, nil
	}
	gen, ok := s.begin(id)
	if !ok {
		return false, ErrClosed
	}

	err := s.api.RemoveFromWishlist(ctx, id)

	s.settle(id, gen, err, func() { delete(s.ids, id) })
	if err != nil {
		s.logger.Warn("wishlist remove failed", "product_id", id, "error", err)
		return false, fmt.Errorf("remove product %d from wishlist: %w", id, err)
	}
	return true, nil
}

// Toggle removes id when wishlisted and adds it otherwise.
func (s *Store) Toggle(ctx context.Context, id catalog.ProductID) (bool, error) {
	if s.Contains(id) {
		return s.Remove(ctx, id)
	}
	return s.Add(ctx, id)
}

func (s *Store) begin(id catalog.ProductID) (uint64, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, false
	}
	s.loading++
	s.updating[id]++
	gen := s.generation
	s.mu.Unlock()
	s.publish()
	return gen, true
}

// settle clears the in-flight markers and applies the change on success.
func (s *Store) settle(id catalog.ProductID, gen uint64, err error, apply func()) {
	s.mu.Lock()
	s.loading--
	if s.updating[id] <= 1 {
		delete(s.updating, id)
	} else {
		s.updating[id]--
	}
	if err == nil && gen == s.generation {
		apply()
	}
	s.mu.Unlock()
	s.publish()
}

// Contains reports whether id is wishlisted locally.
func (s *Store) Contains(id catalog.ProductID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Count returns the number of wishlisted products.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns the wishlisted ids in ascending order.
func (s *Store) IDs() []catalog.ProductID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.ids))
}

// Reset empties the set locally.
func (s *Store) Reset() {
	s.mu.Lock()
	s.ids = make(map[catalog.ProductID]struct{})
	s.generation++
	s.mu.Unlock()
	s.publish()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	up := make(map[catalog.ProductID]bool, len(s.updating))
	for id := range s.updating {
		up[id] = true
	}
	return Snapshot{
		IDs:      maps.Clone(s.ids),
		Loading:  s.loading > 0,
		Updating: up,
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn must not call Subscribe or the unsubscribe function.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.pubMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.pubMu.Unlock()

	return func() {
		s.pubMu.Lock()
		delete(s.subs, id)
		s.pubMu.Unlock()
	}
}

// Close drops all subscribers and rejects further mutations.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.pubMu.Lock()
	clear(s.subs)
	s.pubMu.Unlock()
}

func (s *Store) publish() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.subs {
		fn(snap)
	}
}
