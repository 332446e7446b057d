package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List your orders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			orders, err := a.sf.Client.Orders(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(orders) == 0 {
				fmt.Fprintln(out, "No orders yet.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tPAYMENT\tTOTAL\tDATE")
			for _, o := range orders {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.Status, o.PaymentStatus, o.Total, o.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		})
	},
}

var orderCmd = &cobra.Command{
	Use:   "order <id>",
	Short: "Show one order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid order id %q", args[0])
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			o, err := a.sf.Client.Order(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order %d: %s, payment %s, total %s\n", o.ID, o.Status, o.PaymentStatus, o.Total)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, it := range o.Items {
				fmt.Fprintf(tw, "  %s\t%d\t%s\n", it.Product.Name, it.Quantity, it.Price)
			}
			return tw.Flush()
		})
	},
}

var invoiceOutput string

var orderInvoiceCmd = &cobra.Command{
	Use:   "invoice <id>",
	Short: "Download the invoice of an order",
	Long: `Download the printable HTML invoice of an order to --output, or print it
to stdout when --output is empty or "-".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid order id %q", args[0])
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			doc, err := a.sf.Client.Invoice(ctx, id)
			if err != nil {
				return err
			}
			if invoiceOutput == "" || invoiceOutput == "-" {
				_, err := cmd.OutOrStdout().Write(doc)
				return err
			}
			if err := os.WriteFile(invoiceOutput, doc, 0o644); err != nil {
				return fmt.Errorf("failed to write invoice: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invoice for order %d saved to %s.\n", id, invoiceOutput)
			return nil
		})
	},
}

var (
	checkoutAddress int64
	verifyOrderID   string
	verifyPaymentID string
	verifySignature string
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Place an order for the cart",
	Long: `Create an order from the current cart, shipped to --address.
Prints the payment intent to complete with the payment gateway; confirm the
completed payment with "storefront checkout verify".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			intent, err := a.sf.Client.CreateOrder(ctx, checkoutAddress)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order created.\n")
			fmt.Fprintf(out, "  Gateway order: %s\n", intent.OrderID)
			fmt.Fprintf(out, "  Amount:        %s %s\n", intent.Amount, intent.Currency)
			if intent.KeyID != "" {
				fmt.Fprintf(out, "  Key:           %s\n", intent.KeyID)
			}
			return nil
		})
	},
}

var checkoutVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Confirm a completed payment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			err := a.sf.Client.VerifyPayment(ctx, catalog.PaymentConfirmation{
				GatewayOrderID:   verifyOrderID,
				GatewayPaymentID: verifyPaymentID,
				Signature:        verifySignature,
			})
			if err != nil {
				return err
			}
			// The server empties the cart once the payment is confirmed.
			_ = a.sf.Cart.Refresh(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Payment confirmed.")
			return nil
		})
	},
}

func init() {
	checkoutCmd.Flags().Int64Var(&checkoutAddress, "address", 0, "shipping address id (see storefront address list)")
	_ = checkoutCmd.MarkFlagRequired("address")

	checkoutVerifyCmd.Flags().StringVar(&verifyOrderID, "order", "", "gateway order id")
	checkoutVerifyCmd.Flags().StringVar(&verifyPaymentID, "payment", "", "gateway payment id")
	checkoutVerifyCmd.Flags().StringVar(&verifySignature, "signature", "", "gateway signature")
	checkoutCmd.AddCommand(checkoutVerifyCmd)

	orderInvoiceCmd.Flags().StringVarP(&invoiceOutput, "output", "o", "", "file to write the invoice to")
	orderCmd.AddCommand(orderInvoiceCmd)

	rootCmd.AddCommand(ordersCmd, orderCmd, checkoutCmd)
}
