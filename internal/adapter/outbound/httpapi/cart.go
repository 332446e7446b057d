package httpapi

import (
	"context"
	"net/http"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// GetCart fetches the server-side cart.
func (c *Client) GetCart(ctx context.Context) (*catalog.Cart, error) {
	var cart catalog.Cart
	if err := c.do(ctx, http.MethodGet, "cart/api/", nil, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddToCart increments the quantity of id by one.
func (c *Client) AddToCart(ctx context.Context, id catalog.ProductID) error {
	return c.do(ctx, http.MethodPost, productPath("cart/api/add/%s/", id), nil, nil, nil)
}

// RemoveFromCart decrements the quantity of id by one.
func (c *Client) RemoveFromCart(ctx context.Context, id catalog.ProductID) error {
	return c.do(ctx, http.MethodPost, productPath("cart/api/remove/%s/", id), nil, nil, nil)
}

// DeleteFromCart removes the line for id.
func (c *Client) DeleteFromCart(ctx context.Context, id catalog.ProductID) error {
	return c.do(ctx, http.MethodDelete, productPath("cart/api/full_remove/%s/", id), nil, nil, nil)
}

// ApplyCoupon applies a coupon code and returns the updated cart.
func (c *Client) ApplyCoupon(ctx context.Context, code string) (*catalog.Cart, error) {
	var cart catalog.Cart
	body := struct {
		Code string `json:"code"`
	}{Code: code}
	if err := c.do(ctx, http.MethodPost, "cart/api/apply-coupon/", nil, body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// RemoveCoupon drops the applied coupon and returns the updated cart.
func (c *Client) RemoveCoupon(ctx context.Context) (*catalog.Cart, error) {
	var cart catalog.Cart
	if err := c.do(ctx, http.MethodPost, "cart/api/remove-coupon/", nil, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}
