package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

var productQuery catalog.ProductQuery

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			products, err := a.sf.Catalog.Products(ctx, productQuery)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(products) == 0 {
				fmt.Fprintln(out, "No products found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tSLUG")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Price, p.Stock, p.Slug)
			}
			return tw.Flush()
		})
	},
}

var productCmd = &cobra.Command{
	Use:   "product <slug>",
	Short: "Show one product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			p, err := a.sf.Catalog.Product(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (#%s)\n", p.Name, p.ID)
			fmt.Fprintf(out, "  Price:    %s\n", p.Price)
			if p.Category != nil {
				fmt.Fprintf(out, "  Category: %s\n", p.Category.Name)
			}
			fmt.Fprintf(out, "  Stock:    %d\n", p.Stock)
			if p.Description != "" {
				fmt.Fprintf(out, "\n%s\n", p.Description)
			}
			if a.sf.Session.IsAuthenticated() {
				// Membership flags only; failures leave them unknown.
				_ = a.sf.Start(ctx)
				fmt.Fprintf(out, "\n  In cart:     %d\n", a.sf.Cart.Quantity(p.ID))
				fmt.Fprintf(out, "  Wishlisted:  %t\n", a.sf.Wishlist.Contains(p.ID))
			}
			return nil
		})
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			cats, err := a.sf.Catalog.Categories(ctx)
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", c.Slug, c.Name)
			}
			return nil
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <prefix>",
	Short: "Complete a product search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			names, err := a.sf.Catalog.Suggestions(ctx, args[0])
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		})
	},
}

func init() {
	f := productsCmd.Flags()
	f.StringVarP(&productQuery.Search, "search", "s", "", "search text")
	f.StringVar(&productQuery.Category, "category", "", "category slug")
	f.StringVar(&productQuery.MinPrice, "min-price", "", "minimum price")
	f.StringVar(&productQuery.MaxPrice, "max-price", "", "maximum price")
	f.BoolVar(&productQuery.InStock, "in-stock", false, "only products in stock")
	f.StringVar(&productQuery.Sort, "sort", "", "sort order, e.g. price or -price")
	rootCmd.AddCommand(productsCmd, productCmd, categoriesCmd, suggestCmd)
}
