package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Shop administration (staff accounts only)",
}

// runAdmin runs fn with a session and turns a 403 into a readable error.
func runAdmin(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		err := fn(ctx, a)
		if errors.Is(err, httpapi.ErrForbidden) {
			return errors.New("this account has no admin access")
		}
		return err
	})
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the dashboard summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			st, err := a.sf.Client.AdminStats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Revenue:    %s\n", st.TotalRevenue)
			fmt.Fprintf(out, "Orders:     %d (%d pending)\n", st.TotalOrders, st.PendingOrders)
			fmt.Fprintf(out, "Customers:  %d\n", st.TotalCustomers)
			fmt.Fprintf(out, "Low stock:  %d product(s)\n", st.LowStockCount)
			fmt.Fprintf(out, "Reviews:    %d (avg %.1f)\n", st.TotalReviews, st.AvgRating)
			if len(st.RecentOrders) > 0 {
				fmt.Fprintln(out, "\nRecent orders:")
				return printAdminOrders(out, st.RecentOrders)
			}
			return nil
		})
	},
}

var adminChartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Show revenue per period and orders per status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			cd, err := a.sf.Client.AdminChartData(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PERIOD\tREVENUE\tORDERS")
			for i, label := range cd.Labels {
				var rev catalog.Amount
				var n int
				if i < len(cd.Revenue) {
					rev = cd.Revenue[i]
				}
				if i < len(cd.Orders) {
					n = cd.Orders[i]
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\n", label, rev, n)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(cd.PieLabels) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tORDERS")
			for i, label := range cd.PieLabels {
				if i < len(cd.PieData) {
					fmt.Fprintf(tw, "%s\t%d\n", label, cd.PieData[i])
				}
			}
			return tw.Flush()
		})
	},
}

var adminOrderQuery catalog.AdminOrderQuery

var adminOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List all customers' orders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			page, err := a.sf.Client.AdminOrders(ctx, adminOrderQuery)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printAdminOrders(out, page.Orders); err != nil {
				return err
			}
			fmt.Fprintf(out, "Page %d of %d\n", page.CurrentPage, page.TotalPages)
			return nil
		})
	},
}

func printAdminOrders(w io.Writer, orders []catalog.AdminOrder) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tAMOUNT\tSTATUS\tDATE")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.User, o.Amount, o.Status, o.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

var adminOrderStatusCmd = &cobra.Command{
	Use:   "order-status <id> <status>",
	Short: "Set an order's status (pending, paid, shipped, delivered, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid order id %q", args[0])
		}
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			if err := a.sf.Client.AdminUpdateOrderStatus(ctx, id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %d is now %s.\n", id, args[1])
			return nil
		})
	},
}

var adminProductQuery catalog.AdminProductQuery

var adminProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			page, err := a.sf.Client.AdminProducts(ctx, adminProductQuery)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tCATEGORY")
			for _, p := range page.Products {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Price, p.Stock, p.Category)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Page %d of %d\n", max(page.CurrentPage, 1), page.TotalPages)
			return nil
		})
	},
}

var (
	newProduct   catalog.NewProduct
	newProductIn string
)

var adminProductAddCmd = &cobra.Command{
	Use:   "product-add",
	Short: "Create a product",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			var image *httpapi.Upload
			if newProductIn != "" {
				f, err := os.Open(newProductIn)
				if err != nil {
					return fmt.Errorf("failed to open image: %w", err)
				}
				defer f.Close()
				image = &httpapi.Upload{Filename: newProductIn, Content: f}
			}
			id, err := a.sf.Client.AdminCreateProduct(ctx, newProduct, image)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product %s created.\n", id)
			return nil
		})
	},
}

var (
	editPrice string
	editStock int
)

var adminProductEditCmd = &cobra.Command{
	Use:   "product-edit <id>",
	Short: "Change a product's price or stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := catalog.ParseProductID(args[0])
		if err != nil {
			return err
		}
		var patch catalog.ProductPatch
		if cmd.Flags().Changed("price") {
			price := catalog.Amount(editPrice)
			patch.Price = &price
		}
		if cmd.Flags().Changed("stock") {
			stock := editStock
			patch.Stock = &stock
		}
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			if err := a.sf.Client.AdminUpdateProduct(ctx, id, patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product %s updated.\n", id)
			return nil
		})
	},
}

var adminProductRemoveCmd = &cobra.Command{
	Use:   "product-rm <id>",
	Short: "Delete a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := catalog.ParseProductID(args[0])
		if err != nil {
			return err
		}
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			if err := a.sf.Client.AdminDeleteProduct(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product %s deleted.\n", id)
			return nil
		})
	},
}

var (
	reviewSearch string
	reviewStatus string
)

var adminReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List reviews for moderation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, func(ctx context.Context, a *app) error {
			reviews, err := a.sf.Client.AdminReviews(ctx, reviewSearch, reviewStatus)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPRODUCT\tUSER\tRATING\tSUBJECT\tVISIBLE")
			for _, r := range reviews {
				product := r.ProductName
				if product == "" {
					product = "#" + r.Product.String()
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%t\n", r.ID, product, r.UserName, r.Rating, r.Subject, r.Status)
			}
			return tw.Flush()
		})
	},
}

// adminReviewAction builds the subcommands that act on one review id.
func adminReviewAction(use, short, done string, op func(a *app) func(context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid review id %q", args[0])
			}
			return runAdmin(cmd, func(ctx context.Context, a *app) error {
				if err := op(a)(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Review %d %s.\n", id, done)
				return nil
			})
		},
	}
}

func init() {
	of := adminOrdersCmd.Flags()
	of.StringVar(&adminOrderQuery.Search, "search", "", "order id or customer")
	of.StringVar(&adminOrderQuery.Status, "status", "", "pending, paid, shipped, delivered or cancelled")
	of.IntVar(&adminOrderQuery.Page, "page", 1, "page number")

	lf := adminProductsCmd.Flags()
	lf.StringVar(&adminProductQuery.Search, "search", "", "name, id or slug")
	lf.StringVar(&adminProductQuery.Category, "category", "", "category id")
	lf.StringVar(&adminProductQuery.StockStatus, "stock", "", "low or out")
	lf.IntVar(&adminProductQuery.Page, "page", 1, "page number")

	af := adminProductAddCmd.Flags()
	af.StringVar(&newProduct.Name, "name", "", "product name")
	af.StringVar(&newProduct.Slug, "slug", "", "URL slug")
	af.StringVar((*string)(&newProduct.Price), "price", "", "price, e.g. 19.99")
	af.IntVar(&newProduct.Stock, "stock", 0, "units in stock")
	af.StringVar(&newProduct.Description, "description", "", "description")
	af.Int64Var(&newProduct.CategoryID, "category", 0, "category id")
	af.StringVar(&newProductIn, "image", "", "image file to upload")
	_ = adminProductAddCmd.MarkFlagRequired("name")
	_ = adminProductAddCmd.MarkFlagRequired("slug")
	_ = adminProductAddCmd.MarkFlagRequired("price")

	ef := adminProductEditCmd.Flags()
	ef.StringVar(&editPrice, "price", "", "new price")
	ef.IntVar(&editStock, "stock", 0, "new stock level")
	adminProductEditCmd.MarkFlagsOneRequired("price", "stock")

	rf := adminReviewsCmd.Flags()
	rf.StringVar(&reviewSearch, "search", "", "product, user or text")
	rf.StringVar(&reviewStatus, "status", "", "active or inactive")

	adminCmd.AddCommand(
		adminStatsCmd,
		adminChartCmd,
		adminOrdersCmd,
		adminOrderStatusCmd,
		adminProductsCmd,
		adminProductAddCmd,
		adminProductEditCmd,
		adminProductRemoveCmd,
		adminReviewsCmd,
		adminReviewAction("review-toggle", "Show or hide a review", "toggled", func(a *app) func(context.Context, int64) error { return a.sf.Client.AdminToggleReview }),
		adminReviewAction("review-rm", "Delete a review", "deleted", func(a *app) func(context.Context, int64) error { return a.sf.Client.AdminDeleteReview }),
	)
	rootCmd.AddCommand(adminCmd)
}
