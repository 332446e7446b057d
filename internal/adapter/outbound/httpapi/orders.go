package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// Orders lists the user's orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]catalog.Order, error) {
	var out []catalog.Order
	if err := c.do(ctx, http.MethodGet, "cart/api/orders/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Order returns one order.
func (c *Client) Order(ctx context.Context, id int64) (*catalog.Order, error) {
	var o catalog.Order
	if err := c.do(ctx, http.MethodGet, "cart/api/orders/"+strconv.FormatInt(id, 10)+"/", nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder turns the cart into an order shipped to addressID and returns
// the payment intent to complete.
func (c *Client) CreateOrder(ctx context.Context, addressID int64) (*catalog.PaymentIntent, error) {
	body := struct {
		AddressID int64 `json:"address_id"`
	}{AddressID: addressID}

	var intent catalog.PaymentIntent
	if err := c.do(ctx, http.MethodPost, "cart/api/create-order/", nil, body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// VerifyPayment confirms a completed gateway payment.
func (c *Client) VerifyPayment(ctx context.Context, p catalog.PaymentConfirmation) error {
	if err := c.validate.Struct(p); err != nil {
		return fmt.Errorf("invalid payment confirmation: %w", err)
	}
	return c.do(ctx, http.MethodPost, "cart/api/verify-payment/", nil, p, nil)
}

// Invoice returns the printable invoice of order id as an HTML document.
func (c *Client) Invoice(ctx context.Context, id int64) ([]byte, error) {
	return c.send(ctx, http.MethodGet, "cart/invoice/"+strconv.FormatInt(id, 10)+"/", nil, "", nil, "text/html")
}
