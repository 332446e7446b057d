package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// Upload is a file attached to a multipart form.
type Upload struct {
	Filename string
	Content  io.Reader
}

func adminPath(kind string, id int64) string {
	return "custom-admin/" + kind + "/" + strconv.FormatInt(id, 10) + "/"
}

func adminReviewPath(id int64) string {
	return "shop/api/admin/reviews/" + strconv.FormatInt(id, 10) + "/"
}

func setQuery(q url.Values, key, value string) {
	if value != "" && value != "all" {
		q.Set(key, value)
	}
}

func setPage(q url.Values, page int) {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
}

// AdminStats returns the dashboard summary. Requires a staff account.
func (c *Client) AdminStats(ctx context.Context) (*catalog.DashboardStats, error) {
	var out catalog.DashboardStats
	if err := c.do(ctx, http.MethodGet, "custom-admin/stats/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminChartData returns the dashboard revenue and order status series.
func (c *Client) AdminChartData(ctx context.Context) (*catalog.ChartData, error) {
	var out catalog.ChartData
	if err := c.do(ctx, http.MethodGet, "custom-admin/chart-data/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminOrders returns one page of all customers' orders.
func (c *Client) AdminOrders(ctx context.Context, q catalog.AdminOrderQuery) (*catalog.AdminOrderPage, error) {
	query := url.Values{}
	setQuery(query, "search", q.Search)
	setQuery(query, "status", q.Status)
	setPage(query, q.Page)

	var out catalog.AdminOrderPage
	if err := c.do(ctx, http.MethodGet, "custom-admin/orders/", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminUpdateOrderStatus sets the fulfilment status of order id.
func (c *Client) AdminUpdateOrderStatus(ctx context.Context, id int64, status string) error {
	if err := c.validate.Var(status, "required,oneof=pending paid shipped delivered cancelled"); err != nil {
		return fmt.Errorf("invalid order status: %w", err)
	}
	body := struct {
		Status string `json:"status"`
	}{Status: status}
	return c.do(ctx, http.MethodPatch, adminPath("orders", id), nil, body, nil)
}

// AdminProducts returns one page of the inventory.
func (c *Client) AdminProducts(ctx context.Context, q catalog.AdminProductQuery) (*catalog.AdminProductPage, error) {
	query := url.Values{}
	setQuery(query, "search", q.Search)
	setQuery(query, "category", q.Category)
	setQuery(query, "stock_status", q.StockStatus)
	setPage(query, q.Page)

	var out catalog.AdminProductPage
	if err := c.do(ctx, http.MethodGet, "custom-admin/products/", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminCreateProduct posts a new product as a multipart form and returns its
// id. image may be nil.
func (c *Client) AdminCreateProduct(ctx context.Context, p catalog.NewProduct, image *Upload) (catalog.ProductID, error) {
	if err := c.validate.Struct(p); err != nil {
		return 0, fmt.Errorf("invalid product: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", p.Name},
		{"slug", p.Slug},
		{"price", string(p.Price)},
		{"stock", strconv.Itoa(p.Stock)},
		{"description", p.Description},
	}
	if p.CategoryID > 0 {
		fields = append(fields, [2]string{"category_id", strconv.FormatInt(p.CategoryID, 10)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return 0, fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", filepath.Base(image.Filename))
		if err != nil {
			return 0, fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := io.Copy(part, image.Content); err != nil {
			return 0, fmt.Errorf("failed to read image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish form: %w", err)
	}

	respBody, err := c.send(ctx, http.MethodPost, "custom-admin/products/", nil,
		mw.FormDataContentType(), bytes.NewReader(buf.Bytes()), "application/json")
	if err != nil {
		return 0, err
	}
	var out struct {
		ID catalog.ProductID `json:"id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return out.ID, nil
}

// AdminUpdateProduct patches price and/or stock of product id.
func (c *Client) AdminUpdateProduct(ctx context.Context, id catalog.ProductID, patch catalog.ProductPatch) error {
	if patch.Price == nil && patch.Stock == nil {
		return errors.New("invalid product update: nothing to change")
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return fmt.Errorf("invalid product update: stock %d is negative", *patch.Stock)
	}
	return c.do(ctx, http.MethodPatch, adminPath("products", int64(id)), nil, patch, nil)
}

// AdminDeleteProduct removes product id from the catalog.
func (c *Client) AdminDeleteProduct(ctx context.Context, id catalog.ProductID) error {
	return c.do(ctx, http.MethodDelete, adminPath("products", int64(id)), nil, nil, nil)
}

// AdminReviews lists reviews for moderation. status is "active", "inactive"
// or empty for all.
func (c *Client) AdminReviews(ctx context.Context, search, status string) ([]catalog.AdminReview, error) {
	query := url.Values{}
	setQuery(query, "search", search)
	setQuery(query, "status", status)

	var out []catalog.AdminReview
	if err := c.do(ctx, http.MethodGet, "shop/api/admin/reviews/", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminToggleReview flips the visibility of review id.
func (c *Client) AdminToggleReview(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, adminReviewPath(id), nil, nil, nil)
}

// AdminDeleteReview removes review id.
func (c *Client) AdminDeleteReview(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, adminReviewPath(id), nil, nil, nil)
}
