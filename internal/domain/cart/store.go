// Package cart keeps a local mirror of the server-side cart: a product→quantity
// map and a total count, updated optimistically as the user adds and removes
// items.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/port/outbound"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cart store closed")

// Snapshot is a copy of the cart state.
type Snapshot struct {
	Items           map[catalog.ProductID]int
	Count           int
	Loading         bool
	ShowLoginPrompt bool
	Updating        map[catalog.ProductID]bool
}

// Quantity returns the quantity of id, 0 when absent.
func (s Snapshot) Quantity(id catalog.ProductID) int {
	return s.Items[id]
}

// IsUpdating reports whether a request for id is in flight.
func (s Snapshot) IsUpdating(id catalog.ProductID) bool {
	return s.Updating[id]
}

// Store is the cart state container.
//
// Invariant: count equals the sum of items and every key has a positive
// quantity. The mutex guards local state only and is never held across a
// network call, so concurrent operations on the same product are neither
// serialized nor de-duplicated. Refresh reconciles any drift.
type Store struct {
	api    outbound.CartAPI
	auth   outbound.AuthState
	logger *slog.Logger

	mu       sync.Mutex
	items    map[catalog.ProductID]int
	count    int
	loading  bool
	prompt   bool
	updating map[catalog.ProductID]int
	// generation changes on Reset; results of requests issued before a reset
	// must not touch the new state.
	generation uint64
	closed     bool

	pubMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewStore creates an empty cart store.
func NewStore(api outbound.CartAPI, auth outbound.AuthState, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:      api,
		auth:     auth,
		logger:   logger,
		items:    make(map[catalog.ProductID]int),
		updating: make(map[catalog.ProductID]int),
		subs:     make(map[int]func(Snapshot)),
	}
}

// Refresh replaces local state with the server cart.
// Without a session it resets locally and makes no request. A failed fetch is
// logged and returned; the previous state is kept.
func (s *Store) Refresh(ctx context.Context) error {
	if !s.auth.IsAuthenticated() {
		s.Reset()
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loading = true
	gen := s.generation
	s.mu.Unlock()
	s.publish()

	c, err := s.api.GetCart(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("cart refresh failed, keeping previous state", "error", err)
		s.publish()
		return fmt.Errorf("refresh cart: %w", err)
	}
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.items = c.Quantities()
	s.count = 0
	for _, q := range s.items {
		s.count += q
	}
	count := s.count
	s.mu.Unlock()

	if c.ItemCount != 0 && c.ItemCount != count {
		s.logger.Debug("server item_count differs from line sum", "item_count", c.ItemCount, "sum", count)
	}
	s.publish()
	return nil
}

// Add increments the quantity of id by one.
func (s *Store) Add(ctx context.Context, id catalog.ProductID) Result {
	return s.mutate(ctx, id, +1, s.api.AddToCart, "add")
}

// Remove decrements the quantity of id by one; the line disappears at zero.
func (s *Store) Remove(ctx context.Context, id catalog.ProductID) Result {
	return s.mutate(ctx, id, -1, s.api.RemoveFromCart, "remove")
}

// FullRemove deletes the line for id. The local state changes only after the
// server confirms.
func (s *Store) FullRemove(ctx context.Context, id catalog.ProductID) Result {
	if !s.auth.IsAuthenticated() {
		s.requireLogin()
		return Result{RequiresLogin: true}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{Err: ErrClosed}
	}
	s.updating[id]++
	gen := s.generation
	s.mu.Unlock()
	s.publish()

	err := s.api.DeleteFromCart(ctx, id)

	s.mu.Lock()
	s.doneUpdatingLocked(id)
	if err == nil && gen == s.generation {
		if q, ok := s.items[id]; ok {
			s.count -= q
			delete(s.items, id)
		}
	}
	s.mu.Unlock()
	s.publish()

	if err != nil {
		s.logger.Warn("cart full remove failed", "product_id", id, "error", err)
		return Result{Err: fmt.Errorf("remove product %d from cart: %w", id, err)}
	}
	return Result{}
}

// mutate runs an optimistic ±1 change: apply locally, send, then commit or
// roll back.
func (s *Store) mutate(ctx context.Context, id catalog.ProductID, delta int,
	send func(context.Context, catalog.ProductID) error, op string) Result {
	if !s.auth.IsAuthenticated() {
		s.requireLogin()
		return Result{RequiresLogin: true}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{Err: ErrClosed}
	}
	m := &Mutation{
		Product:    id,
		Requested:  delta,
		Applied:    s.applyLocked(id, delta),
		State:      MutationPending,
		generation: s.generation,
	}
	s.updating[id]++
	s.mu.Unlock()
	s.publish()

	err := send(ctx, id)

	s.mu.Lock()
	s.doneUpdatingLocked(id)
	if err != nil {
		if m.generation == s.generation {
			s.applyLocked(id, -m.Applied)
		}
		m.State = MutationRolledBack
	} else {
		m.State = MutationCommitted
	}
	s.mu.Unlock()
	s.publish()

	if err != nil {
		s.logger.Warn("cart update failed, rolled back", "op", op, "product_id", id, "error", err)
		return Result{Err: fmt.Errorf("%s product %d: %w", op, id, err), Mutation: m}
	}
	return Result{Mutation: m}
}

// applyLocked changes the quantity of id by delta, flooring at zero and
// deleting the key at zero. It returns the delta actually applied so the
// count always moves with the map.
func (s *Store) applyLocked(id catalog.ProductID, delta int) int {
	cur := s.items[id]
	next := cur + delta
	if next < 0 {
		next = 0
	}
	if next == 0 {
		delete(s.items, id)
	} else {
		s.items[id] = next
	}
	applied := next - cur
	s.count += applied
	return applied
}

func (s *Store) doneUpdatingLocked(id catalog.ProductID) {
	if s.updating[id] <= 1 {
		delete(s.updating, id)
		return
	}
	s.updating[id]--
}

func (s *Store) requireLogin() {
	s.mu.Lock()
	s.prompt = true
	s.mu.Unlock()
	s.publish()
}

// CloseLoginPrompt hides the login prompt.
func (s *Store) CloseLoginPrompt() {
	s.mu.Lock()
	s.prompt = false
	s.mu.Unlock()
	s.publish()
}

// Reset empties the cart locally without contacting the server.
// Results of requests issued before the reset are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = make(map[catalog.ProductID]int)
	s.count = 0
	s.loading = false
	s.generation++
	s.mu.Unlock()
	s.publish()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	up := make(map[catalog.ProductID]bool, len(s.updating))
	for id := range s.updating {
		up[id] = true
	}
	return Snapshot{
		Items:           maps.Clone(s.items),
		Count:           s.count,
		Loading:         s.loading,
		ShowLoginPrompt: s.prompt,
		Updating:        up,
	}
}

// Quantity returns the local quantity of id.
func (s *Store) Quantity(id catalog.ProductID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

// Count returns the total number of units in the cart.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function unsubscribes; after it returns fn is not called again.
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

// Close drops all subscribers. Requests still in flight complete but their
// results no longer reach anyone.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.pubMu.Lock()
	clear(s.subs)
	s.pubMu.Unlock()
}

// publish delivers the current snapshot. Deliveries are serialized so
// subscribers never see an older snapshot after a newer one.
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
