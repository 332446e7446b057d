package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

// SubmitReview posts a review for product id.
func (c *Client) SubmitReview(ctx context.Context, id catalog.ProductID, r catalog.Review) error {
	if err := c.validate.Struct(r); err != nil {
		return fmt.Errorf("invalid review: %w", err)
	}
	return c.do(ctx, http.MethodPost, productPath("shop/api/reviews/submit/%s/", id), nil, r, nil)
}
