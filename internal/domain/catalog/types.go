// Package catalog defines the storefront entities exchanged with the backend:
// products, carts, orders and addresses.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ProductID identifies a product.
type ProductID int64

// ParseProductID parses a decimal product id.
func ParseProductID(s string) (ProductID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid product id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid product id %q: must be positive", s)
	}
	return ProductID(n), nil
}

// String returns the decimal form used in URLs.
func (id ProductID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts both 42 and "42".
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = ProductID(n)
	return nil
}

// Amount is a decimal money value kept in its textual form.
// The backend serializes decimals either as JSON strings or numbers.
type Amount string

// UnmarshalJSON accepts "12.50", 12.5 and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Float returns the amount as a float for display arithmetic.
func (a Amount) Float() float64 {
	f, _ := strconv.ParseFloat(string(a), 64)
	return f
}

// Category groups products.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Product is a catalog entry.
type Product struct {
	ID          ProductID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Price       Amount    `json:"price"`
	Category    *Category `json:"category,omitempty"`
	Image       string    `json:"image,omitempty"`
	Stock       int       `json:"stock"`
	Available   bool      `json:"available"`
}

// ProductQuery filters the product listing. Zero values are omitted.
type ProductQuery struct {
	Search   string
	Category string
	MinPrice string
	MaxPrice string
	InStock  bool
	Sort     string
}

// CartItem is one line of the server-side cart.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	SubTotal Amount  `json:"sub_total"`
}

// Cart is the server-side cart as returned by the cart endpoint.
type Cart struct {
	Items      []CartItem `json:"items"`
	ItemCount  int        `json:"item_count"`
	Total      Amount     `json:"total,omitempty"`
	Discount   Amount     `json:"discount,omitempty"`
	GrandTotal Amount     `json:"grand_total,omitempty"`
	Coupon     string     `json:"coupon,omitempty"`
}

// Quantities returns the cart as a product→quantity map, skipping lines with
// non-positive quantities.
func (c *Cart) Quantities() map[ProductID]int {
	m := make(map[ProductID]int, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity > 0 {
			m[it.Product.ID] += it.Quantity
		}
	}
	return m
}

// Address is a shipping address.
type Address struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,max=15"`
	AddressLine1 string `json:"address_line1" validate:"required,max=255"`
	AddressLine2 string `json:"address_line2,omitempty" validate:"max=255"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=10"`
	Country      string `json:"country" validate:"required,max=100"`
	AddressType  string `json:"address_type,omitempty" validate:"omitempty,oneof=home work other"`
	IsDefault    bool   `json:"is_default"`
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    Amount  `json:"price"`
}

// Order is a placed order.
type Order struct {
	ID            int64       `json:"id"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status,omitempty"`
	Total         Amount      `json:"total_amount"`
	Items         []OrderItem `json:"items,omitempty"`
	Address       *Address    `json:"address,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// PaymentIntent is returned when an order is created; it carries the payment
// gateway order that the customer completes out of band.
type PaymentIntent struct {
	OrderID  string `json:"order_id"`
	Amount   Amount `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// PaymentConfirmation is posted back after the gateway reports payment.
type PaymentConfirmation struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature        string `json:"razorpay_signature" validate:"required"`
}

// Review is a product review submission.
type Review struct {
	Subject string `json:"subject" validate:"max=100"`
	Body    string `json:"review" validate:"max=500"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
}

// Profile is the authenticated user's account.
type Profile struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"first_name,omitempty" validate:"max=150"`
	LastName  string `json:"last_name,omitempty" validate:"max=150"`
}
