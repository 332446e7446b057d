package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/storefront/internal/domain/cart"
	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show and change the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCartShow(cmd)
	},
}

var cartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List cart lines and totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCartShow(cmd)
	},
}

func runCartShow(cmd *cobra.Command) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		c, err := a.sf.Client.GetCart(ctx)
		if err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), c)
		return nil
	})
}

func printCart(w io.Writer, c *catalog.Cart) {
	if len(c.Items) == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, it := range c.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			it.Product.ID, it.Product.Name, it.Quantity, it.Product.Price, it.SubTotal)
	}
	_ = tw.Flush()

	if c.Coupon != "" {
		fmt.Fprintf(w, "Coupon:      %s (-%s)\n", c.Coupon, c.Discount)
	}
	if c.Total != "" {
		fmt.Fprintf(w, "Total:       %s\n", c.Total)
	}
	if c.GrandTotal != "" {
		fmt.Fprintf(w, "Grand total: %s\n", c.GrandTotal)
	}
}

// cartMutation builds the add/remove/rm-all subcommands.
func cartMutation(use, short string, op func(s *cart.Store) func(context.Context, catalog.ProductID) cart.Result) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <product-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := catalog.ParseProductID(args[0])
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				// Hydrate so the printed quantities match the server.
				if err := a.sf.Cart.Refresh(ctx); err != nil {
					return err
				}
				res := op(a.sf.Cart)(ctx, id)
				if err := cartResultError(res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Product %s: quantity %d. Cart: %d item(s).\n",
					id, a.sf.Cart.Quantity(id), a.sf.Cart.Count())
				return nil
			})
		},
	}
}

// cartResultError turns a failed cart.Result into an error.
func cartResultError(res cart.Result) error {
	switch {
	case res.RequiresLogin:
		return errNotSignedIn
	case res.Err != nil:
		return res.Err
	}
	return nil
}

func init() {
	cartCmd.AddCommand(
		cartShowCmd,
		cartMutation("add", "Add one unit of a product", func(s *cart.Store) func(context.Context, catalog.ProductID) cart.Result { return s.Add }),
		cartMutation("remove", "Remove one unit of a product", func(s *cart.Store) func(context.Context, catalog.ProductID) cart.Result { return s.Remove }),
		cartMutation("rm-all", "Remove a product line entirely", func(s *cart.Store) func(context.Context, catalog.ProductID) cart.Result { return s.FullRemove }),
	)
	rootCmd.AddCommand(cartCmd)
}
