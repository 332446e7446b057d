// Package outbound defines the outbound port interfaces the cart and
// wishlist stores use to reach the storefront backend.
package outbound

import (
	"context"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// AuthState reports whether the user currently holds an access token.
type AuthState interface {
	IsAuthenticated() bool
}

// CartAPI is the outbound port for the server-side cart.
// The HTTP adapter implements it against the cart endpoints.
type CartAPI interface {
	// GetCart fetches the full cart.
	GetCart(ctx context.Context) (*catalog.Cart, error)

	// AddToCart increments the product quantity by one.
	AddToCart(ctx context.Context, id catalog.ProductID) error

	// RemoveFromCart decrements the product quantity by one.
	RemoveFromCart(ctx context.Context, id catalog.ProductID) error

	// DeleteFromCart removes the product line entirely.
	DeleteFromCart(ctx context.Context, id catalog.ProductID) error
}

// WishlistAPI is the outbound port for the server-side wishlist.
type WishlistAPI interface {
	// WishlistIDs returns the ids of all wishlisted products.
	WishlistIDs(ctx context.Context) ([]catalog.ProductID, error)

	// AddToWishlist adds the product.
	AddToWishlist(ctx context.Context, id catalog.ProductID) error

	// RemoveFromWishlist removes the product.
	RemoveFromWishlist(ctx context.Context, id catalog.ProductID) error
}
