package httpapi

import (
	"context"
	"net/http"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// WishlistIDs returns the ids of the wishlisted products.
func (c *Client) WishlistIDs(ctx context.Context) ([]catalog.ProductID, error) {
	var out struct {
		ProductIDs []catalog.ProductID `json:"product_ids"`
	}
	if err := c.do(ctx, http.MethodGet, "shop/api/wishlist/product-ids/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.ProductIDs, nil
}

// Wishlist returns the wishlisted products with their details.
func (c *Client) Wishlist(ctx context.Context) (*catalog.Wishlist, error) {
	var out catalog.Wishlist
	if err := c.do(ctx, http.MethodGet, "shop/api/wishlist/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddToWishlist(ctx context.Context, id catalog.ProductID) error {
	return c.do(ctx, http.MethodPost, productPath("shop/api/wishlist/add/%s/", id), nil, nil, nil)
}

func (c *Client) RemoveFromWishlist(ctx context.Context, id catalog.ProductID) error {
	return c.do(ctx, http.MethodDelete, productPath("shop/api/wishlist/remove/%s/", id), nil, nil, nil)
}
