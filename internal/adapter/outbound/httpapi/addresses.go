package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

func addressPath(id int64, suffix string) string {
	return "shop/api/addresses/" + strconv.FormatInt(id, 10) + "/" + suffix
}

// Addresses lists saved shipping addresses.
func (c *Client) Addresses(ctx context.Context) ([]catalog.Address, error) {
	var out []catalog.Address
	if err := c.do(ctx, http.MethodGet, "shop/api/addresses/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAddress validates and saves a new address.
func (c *Client) CreateAddress(ctx context.Context, a catalog.Address) (*catalog.Address, error) {
	if err := c.validate.Struct(a); err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	var out catalog.Address
	if err := c.do(ctx, http.MethodPost, "shop/api/addresses/", nil, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAddress validates and replaces address id.
func (c *Client) UpdateAddress(ctx context.Context, id int64, a catalog.Address) (*catalog.Address, error) {
	if err := c.validate.Struct(a); err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	var out catalog.Address
	if err := c.do(ctx, http.MethodPut, addressPath(id, ""), nil, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAddress removes address id.
func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, addressPath(id, ""), nil, nil, nil)
}

// SetDefaultAddress marks address id as the default.
func (c *Client) SetDefaultAddress(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, addressPath(id, "set-default/"), nil, nil, nil)
}
