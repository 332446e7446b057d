package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// Categories lists product categories.
func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	var out []catalog.Category
	if err := c.do(ctx, http.MethodGet, "shop/api/categories/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Products lists products matching q. The backend answers either with a
// plain array or with a paginated {"results": [...]} envelope.
func (c *Client) Products(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error) {
	query := url.Values{}
	setIf := func(k, v string) {
		if v != "" {
			query.Set(k, v)
		}
	}
	setIf("search", q.Search)
	setIf("category", q.Category)
	setIf("min_price", q.MinPrice)
	setIf("max_price", q.MaxPrice)
	setIf("sort", q.Sort)
	if q.InStock {
		query.Set("in_stock", "true")
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "shop/api/products/", query, nil, &raw); err != nil {
		return nil, err
	}
	return decodeProductList(raw)
}

func decodeProductList(raw json.RawMessage) ([]catalog.Product, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []catalog.Product
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var page struct {
		Results []catalog.Product `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// Product returns the product with the given slug.
func (c *Client) Product(ctx context.Context, slug string) (*catalog.Product, error) {
	var p catalog.Product
	if err := c.do(ctx, http.MethodGet, "shop/api/products/"+url.PathEscape(slug)+"/", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchSuggestions returns product names completing prefix.
func (c *Client) SearchSuggestions(ctx context.Context, prefix string) ([]string, error) {
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	query := url.Values{"q": {prefix}}
	if err := c.do(ctx, http.MethodGet, "shop/api/products/search-suggestions/", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}
