package catalog

import "time"

// DashboardStats is the admin dashboard summary.
type DashboardStats struct {
	TotalRevenue   Amount       `json:"total_revenue"`
	TotalOrders    int          `json:"total_orders"`
	PendingOrders  int          `json:"pending_orders"`
	TotalCustomers int          `json:"total_customers"`
	LowStockCount  int          `json:"low_stock_count"`
	TotalReviews   int          `json:"total_reviews"`
	AvgRating      float64      `json:"avg_rating"`
	RecentOrders   []AdminOrder `json:"recent_orders"`
}

// ChartData is the revenue series and the order status breakdown shown on
// the dashboard. Revenue and Orders are parallel to Labels; PieData is
// parallel to PieLabels.
type ChartData struct {
	Labels    []string `json:"labels"`
	Revenue   []Amount `json:"revenue"`
	Orders    []int    `json:"orders"`
	PieLabels []string `json:"pie_labels"`
	PieData   []int    `json:"pie_data"`
}

// AdminOrder is an order as listed in the admin console.
type AdminOrder struct {
	ID         int64     `json:"id"`
	GatewayID  string    `json:"order_id"`
	User       string    `json:"user"`
	Amount     Amount    `json:"amount"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	ItemsCount int       `json:"items_count,omitempty"`
}

// AdminOrderQuery filters the admin order listing. Zero values are omitted.
type AdminOrderQuery struct {
	Search string
	Status string
	Page   int
}

// AdminOrderPage is one page of the admin order listing.
type AdminOrderPage struct {
	Orders      []AdminOrder `json:"orders"`
	TotalPages  int          `json:"total_pages"`
	CurrentPage int          `json:"current_page"`
	TotalCount  int          `json:"total_count"`
}

// AdminProduct is a product row of the admin inventory. Category is the
// category name.
type AdminProduct struct {
	ID       ProductID `json:"id"`
	Name     string    `json:"name"`
	Price    Amount    `json:"price"`
	Stock    int       `json:"stock"`
	Category string    `json:"category"`
	Image    string    `json:"image,omitempty"`
}

// AdminProductQuery filters the admin inventory. StockStatus is "low" or
// "out". Zero values are omitted.
type AdminProductQuery struct {
	Search      string
	Category    string
	StockStatus string
	Page        int
}

// AdminProductPage is one page of the admin inventory.
type AdminProductPage struct {
	Products    []AdminProduct `json:"products"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
	TotalCount  int            `json:"total_count"`
}

// NewProduct is the form posted to create a product.
type NewProduct struct {
	Name        string `validate:"required,max=200"`
	Slug        string `validate:"required,max=200"`
	Price       Amount `validate:"required,numeric"`
	Stock       int    `validate:"min=0"`
	Description string
	CategoryID  int64 `validate:"min=0"`
}

// ProductPatch changes the price and/or stock of a product. Nil fields are
// left unchanged.
type ProductPatch struct {
	Price *Amount `json:"price,omitempty"`
	Stock *int    `json:"stock,omitempty"`
}

// AdminReview is a review as moderated in the admin console. Status reports
// whether the review is visible.
type AdminReview struct {
	ID          int64     `json:"id"`
	Product     ProductID `json:"product"`
	ProductName string    `json:"product_name,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
	Rating      int       `json:"rating"`
	Subject     string    `json:"subject"`
	Body        string    `json:"review"`
	Status      bool      `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// WishlistEntry is one wishlisted product with its details.
type WishlistEntry struct {
	ID      int64   `json:"id"`
	Product Product `json:"product"`
}

// Wishlist is the full wishlist as returned by the wishlist page endpoint.
type Wishlist struct {
	Items []WishlistEntry `json:"items"`
	Count int             `json:"count"`
}
