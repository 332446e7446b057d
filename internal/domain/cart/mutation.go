package cart

import (
	"fmt"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// MutationState tracks an optimistic change through its lifecycle.
type MutationState int

const (
	// MutationPending means the local change is applied and the request is in flight.
	MutationPending MutationState = iota
	// MutationCommitted means the server accepted the change.
	MutationCommitted
	// MutationRolledBack means the server rejected it and the local change was reverted.
	MutationRolledBack
)

// String returns the state name.
func (s MutationState) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mutation is one optimistic quantity change.
type Mutation struct {
	Product catalog.ProductID
	// Requested is the delta the caller asked for (+1 or -1).
	Requested int
	// Applied is the delta that actually changed local state. It differs from
	// Requested when the quantity was already zero.
	Applied int
	State   MutationState

	generation uint64
}

// Result is the outcome of a cart mutation.
type Result struct {
	// RequiresLogin is set when the operation was refused because the user
	// is not signed in. No request was made.
	RequiresLogin bool
	// Err is the request failure, if any. Local state is unchanged on failure.
	Err error
	// Mutation is the optimistic change, nil for login-gated or confirm-first operations.
	Mutation *Mutation
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return !r.RequiresLogin && r.Err == nil
}
