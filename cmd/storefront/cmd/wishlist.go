package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/domain/wishlist"
)

var wishlistCmd = &cobra.Command{
	Use:     "wishlist",
	Aliases: []string{"wl"},
	Short:   "Show and change the wishlist",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWishlistShow(cmd)
	},
}

var wishlistFull bool

var wishlistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List wishlisted products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if wishlistFull {
			return runWishlistFull(cmd)
		}
		return runWishlistShow(cmd)
	},
}

func runWishlistShow(cmd *cobra.Command) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		if err := a.sf.Wishlist.Refresh(ctx); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ids := a.sf.Wishlist.IDs()
		if len(ids) == 0 {
			fmt.Fprintln(out, "Your wishlist is empty.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	})
}

// runWishlistFull lists the wishlist with product details.
func runWishlistFull(cmd *cobra.Command) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		wl, err := a.sf.Client.Wishlist(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(wl.Items) == 0 {
			fmt.Fprintln(out, "Your wishlist is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
		for _, it := range wl.Items {
			p := it.Product
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price, p.Stock)
		}
		return tw.Flush()
	})
}

// wishlistMutation builds the add/remove/toggle subcommands.
func wishlistMutation(use, short string, op func(s *wishlist.Store) func(context.Context, catalog.ProductID) (bool, error)) *cobra.Command {
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
				if err := a.sf.Wishlist.Refresh(ctx); err != nil {
					return err
				}
				ok, err := op(a.sf.Wishlist)(ctx, id)
				if errors.Is(err, wishlist.ErrLoginRequired) {
					return errNotSignedIn
				}
				if err != nil {
					return err
				}
				if !ok && !a.sf.Session.IsAuthenticated() {
					return errNotSignedIn
				}
				state := "not in"
				if a.sf.Wishlist.Contains(id) {
					state = "in"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Product %s is %s your wishlist.\n", id, state)
				return nil
			})
		},
	}
}

func init() {
	wishlistShowCmd.Flags().BoolVar(&wishlistFull, "full", false, "include product names, prices and stock")
	wishlistCmd.AddCommand(
		wishlistShowCmd,
		wishlistMutation("add", "Wishlist a product", func(s *wishlist.Store) func(context.Context, catalog.ProductID) (bool, error) { return s.Add }),
		wishlistMutation("remove", "Remove a product from the wishlist", func(s *wishlist.Store) func(context.Context, catalog.ProductID) (bool, error) { return s.Remove }),
		wishlistMutation("toggle", "Add or remove a product", func(s *wishlist.Store) func(context.Context, catalog.ProductID) (bool, error) { return s.Toggle }),
	)
	rootCmd.AddCommand(wishlistCmd)
}
