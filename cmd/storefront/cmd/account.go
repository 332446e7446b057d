package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Manage shipping addresses",
}

var addressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			addrs, err := a.sf.Client.Addresses(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tCITY\tDEFAULT")
			for _, ad := range addrs {
				def := ""
				if ad.IsDefault {
					def = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", ad.ID, ad.Name, ad.AddressLine1, ad.City, def)
			}
			return tw.Flush()
		})
	},
}

var newAddress catalog.Address

var addressAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			created, err := a.sf.Client.CreateAddress(ctx, newAddress)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Address %d saved.\n", created.ID)
			return nil
		})
	},
}

var addressEdits catalog.Address

var addressEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a saved address",
	Long: `Change a saved address. Only the given flags are changed; the other
fields keep their current values.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid address id %q", args[0])
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			addrs, err := a.sf.Client.Addresses(ctx)
			if err != nil {
				return err
			}
			idx := slices.IndexFunc(addrs, func(ad catalog.Address) bool { return ad.ID == id })
			if idx < 0 {
				return fmt.Errorf("address %d not found", id)
			}
			cur := overlayAddress(cmd.Flags(), addrs[idx], addressEdits)
			if _, err := a.sf.Client.UpdateAddress(ctx, id, cur); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Address %d updated.\n", id)
			return nil
		})
	},
}

func bindAddressFlags(f *pflag.FlagSet, a *catalog.Address, defaultType string) {
	f.StringVar(&a.Name, "name", "", "recipient name")
	f.StringVar(&a.Phone, "phone", "", "phone number")
	f.StringVar(&a.AddressLine1, "line1", "", "street address")
	f.StringVar(&a.AddressLine2, "line2", "", "apartment, suite, etc.")
	f.StringVar(&a.City, "city", "", "city")
	f.StringVar(&a.State, "state", "", "state or region")
	f.StringVar(&a.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&a.Country, "country", "", "country")
	f.StringVar(&a.AddressType, "type", defaultType, "home, work or other")
	f.BoolVar(&a.IsDefault, "default", false, "make this the default address")
}

// overlayAddress copies the fields whose flags were set from edits onto cur.
func overlayAddress(f *pflag.FlagSet, cur, edits catalog.Address) catalog.Address {
	strs := []struct {
		flag string
		dst  *string
		src  string
	}{
		{"name", &cur.Name, edits.Name},
		{"phone", &cur.Phone, edits.Phone},
		{"line1", &cur.AddressLine1, edits.AddressLine1},
		{"line2", &cur.AddressLine2, edits.AddressLine2},
		{"city", &cur.City, edits.City},
		{"state", &cur.State, edits.State},
		{"postal-code", &cur.PostalCode, edits.PostalCode},
		{"country", &cur.Country, edits.Country},
		{"type", &cur.AddressType, edits.AddressType},
	}
	for _, s := range strs {
		if f.Changed(s.flag) {
			*s.dst = s.src
		}
	}
	if f.Changed("default") {
		cur.IsDefault = edits.IsDefault
	}
	return cur
}

// addressAction builds the subcommands that act on one address id.
func addressAction(use, short, done string, op func(a *app) func(context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid address id %q", args[0])
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}
				if err := op(a)(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Address %d %s.\n", id, done)
				return nil
			})
		},
	}
}

var couponCmd = &cobra.Command{
	Use:   "coupon",
	Short: "Apply or remove a coupon",
}

var couponApplyCmd = &cobra.Command{
	Use:   "apply <code>",
	Short: "Apply a coupon code to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			c, err := a.sf.Client.ApplyCoupon(ctx, args[0])
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), c)
			return nil
		})
	},
}

var couponRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the applied coupon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			c, err := a.sf.Client.RemoveCoupon(ctx)
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), c)
			return nil
		})
	},
}

var newReview catalog.Review

var reviewCmd = &cobra.Command{
	Use:   "review <product-id>",
	Short: "Review a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := catalog.ParseProductID(args[0])
		if err != nil {
			return err
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.sf.Client.SubmitReview(ctx, id, newReview); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Thanks for your review.")
			return nil
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your account details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			p, err := a.sf.Client.Profile(ctx)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

var profileEdits catalog.Profile

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Change your account details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			p, err := a.sf.Client.Profile(ctx)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("username") {
				p.Username = profileEdits.Username
			}
			if f.Changed("email") {
				p.Email = profileEdits.Email
			}
			if f.Changed("first-name") {
				p.FirstName = profileEdits.FirstName
			}
			if f.Changed("last-name") {
				p.LastName = profileEdits.LastName
			}
			updated, err := a.sf.Client.UpdateProfile(ctx, *p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
			printProfile(cmd.OutOrStdout(), updated)
			return nil
		})
	},
}

func printProfile(w io.Writer, p *catalog.Profile) {
	fmt.Fprintf(w, "Username: %s\n", p.Username)
	fmt.Fprintf(w, "Email:    %s\n", p.Email)
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		fmt.Fprintf(w, "Name:     %s\n", name)
	}
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Recover a forgotten password",
}

var resetEmail string

var passwordResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Mail a password reset link",
	Long: `Ask the shop to mail a password reset link to --email. The link carries
a uid and a token; finish with "storefront password reset confirm <uid> <token>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.sf.Client.RequestPasswordReset(ctx, resetEmail); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password reset link sent to your email.")
			return nil
		})
	},
}

var resetPassword string

var passwordResetConfirmCmd = &cobra.Command{
	Use:   "confirm <uid> <token>",
	Short: "Set a new password from a reset link",
	Long: `Set a new password using the uid and token of a reset link.
The password is read from --new-password, then $STOREFRONT_NEW_PASSWORD, then
an interactive prompt.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		password, err := readPassword("New password: ", resetPassword, "STOREFRONT_NEW_PASSWORD", cmd.InOrStdin(), in, out)
		if err != nil {
			return err
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.sf.Client.ConfirmPasswordReset(ctx, args[0], args[1], password); err != nil {
				if errors.Is(err, httpapi.ErrBadRequest) || errors.Is(err, httpapi.ErrUnauthorized) {
					return errors.New("invalid or expired reset link")
				}
				return err
			}
			fmt.Fprintln(out, "Password reset. Run `storefront login` with the new password.")
			return nil
		})
	},
}

func init() {
	bindAddressFlags(addressAddCmd.Flags(), &newAddress, "home")
	bindAddressFlags(addressEditCmd.Flags(), &addressEdits, "")

	addressCmd.AddCommand(
		addressListCmd,
		addressAddCmd,
		addressEditCmd,
		addressAction("delete", "Delete an address", "deleted", func(a *app) func(context.Context, int64) error { return a.sf.Client.DeleteAddress }),
		addressAction("default", "Make an address the default", "is now the default", func(a *app) func(context.Context, int64) error { return a.sf.Client.SetDefaultAddress }),
	)
	couponCmd.AddCommand(couponApplyCmd, couponRemoveCmd)

	rf := reviewCmd.Flags()
	rf.IntVar(&newReview.Rating, "rating", 0, "rating from 1 to 5")
	rf.StringVar(&newReview.Subject, "subject", "", "short title")
	rf.StringVar(&newReview.Body, "text", "", "review text")
	_ = reviewCmd.MarkFlagRequired("rating")

	pf := profileEditCmd.Flags()
	pf.StringVar(&profileEdits.Username, "username", "", "new username")
	pf.StringVar(&profileEdits.Email, "email", "", "new email address")
	pf.StringVar(&profileEdits.FirstName, "first-name", "", "first name")
	pf.StringVar(&profileEdits.LastName, "last-name", "", "last name")
	profileCmd.AddCommand(profileEditCmd)

	passwordResetCmd.Flags().StringVar(&resetEmail, "email", "", "account email address")
	_ = passwordResetCmd.MarkFlagRequired("email")
	passwordResetConfirmCmd.Flags().StringVar(&resetPassword, "new-password", "", "new password (prefer the prompt)")
	passwordResetCmd.AddCommand(passwordResetConfirmCmd)
	passwordCmd.AddCommand(passwordResetCmd)

	rootCmd.AddCommand(addressCmd, couponCmd, reviewCmd, profileCmd, passwordCmd)
}
