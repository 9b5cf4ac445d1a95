package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/service"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/storefront"
)

type cardOptions struct {
	Number string
	Holder string
	Expiry string
	CVV    string
	Save   bool
}

func NewCheckoutCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Create, pay or abandon the pending order",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "begin",
		Short: "Create a pending order from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(app *storefront.App) error {
				if err := app.Carts.Refresh(cmd.Context()); err != nil {
					return fail("Cart", err)
				}
				order, err := app.Checkout.BeginCheckout(cmd.Context())
				if err != nil {
					return fail("Checkout", err)
				}
				return printOrder(cmd.OutOrStdout(), opts.Format, order)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Show the latest pending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(app *storefront.App) error {
				order, err := app.Checkout.ResumeCheckout(cmd.Context())
				if err != nil {
					return fail("Checkout", err)
				}
				return printOrder(cmd.OutOrStdout(), opts.Format, order)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel",
		Short: "Abandon the pending order and reopen the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(app *storefront.App) error {
				if err := app.Resolver.Resolve(cmd.Context(), service.ResolveCancel); err != nil {
					return fail("Checkout", err)
				}
				return printCart(cmd.OutOrStdout(), opts.Format, app.Store.Snapshot())
			})
		},
	})

	shipping := &domain.Shipping{}
	shipCmd := &cobra.Command{
		Use:   "ship",
		Short: "Set the shipping details of the pending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.ValidateShipping(*shipping); err != nil {
				return validationFailure(cmd.ErrOrStderr(), err)
			}
			return withApp(opts, cmd, func(app *storefront.App) error {
				if _, err := app.Checkout.ResumeCheckout(cmd.Context()); err != nil {
					return fail("Checkout", err)
				}
				order, err := app.Checkout.UpdateShipping(cmd.Context(), *shipping)
				if err != nil {
					return fail("Checkout", err)
				}
				return printOrder(cmd.OutOrStdout(), opts.Format, order)
			})
		},
	}
	shipCmd.Flags().StringVar(&shipping.Name, "name", "", "recipient name")
	shipCmd.Flags().StringVar(&shipping.Address, "address", "", "street address")
	shipCmd.Flags().StringVar(&shipping.City, "city", "", "city")
	shipCmd.Flags().StringVar(&shipping.Province, "province", "", "province")
	shipCmd.Flags().StringVar(&shipping.PostalCode, "postal-code", "", "4 digit postal code")
	shipCmd.Flags().StringVar(&shipping.PhoneNumber, "phone", "", "phone number, at least 10 digits")
	cmd.AddCommand(shipCmd)

	card := &cardOptions{}
	payCmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay the pending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			details := domain.CardDetails{
				Number:       card.Number,
				Holder:       card.Holder,
				Expiry:       card.Expiry,
				CVV:          card.CVV,
				SaveForReuse: card.Save,
			}
			return withApp(opts, cmd, func(app *storefront.App) error {
				if _, err := app.Checkout.ResumeCheckout(cmd.Context()); err != nil {
					return fail("Checkout", err)
				}
				intent, err := app.Checkout.Pay(cmd.Context(), details)
				if err != nil {
					if service.Classify(err) == service.KindValidation {
						return validationFailure(cmd.ErrOrStderr(), err)
					}
					return fail("Payment", err)
				}
				if opts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), intent)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Payment %s confirmed for order #%d\n", intent.PaymentIntentID, intent.OrderID)
				return nil
			})
		},
	}
	payCmd.Flags().StringVar(&card.Number, "number", "", "card number")
	payCmd.Flags().StringVar(&card.Holder, "holder", "", "card holder")
	payCmd.Flags().StringVar(&card.Expiry, "expiry", "", "expiry as MM/YYYY")
	payCmd.Flags().StringVar(&card.CVV, "cvv", "", "3 digit CVV")
	payCmd.Flags().BoolVar(&card.Save, "save", false, "save the card for later")
	cmd.AddCommand(payCmd)

	return cmd
}

func validationFailure(w io.Writer, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		for field, msg := range ve.Fields {
			fmt.Fprintf(w, "  %s: %s\n", field, msg)
		}
	}
	return fail("Checkout", err)
}

func printOrder(w io.Writer, format string, order domain.PendingOrder) error {
	if format == "json" {
		return printJSON(w, order)
	}
	fmt.Fprintf(w, "Order #%d (%s)  Total: %s\n", order.OrderID, order.Status, order.Total.StringFixed(2))
	for _, it := range order.Items {
		fmt.Fprintf(w, "  %s  %d x %s\n", it.Name, it.Quantity, it.UnitPrice.StringFixed(2))
	}
	if order.Shipping != (domain.Shipping{}) {
		s := order.Shipping
		fmt.Fprintf(w, "Ship to: %s, %s, %s, %s %s (%s)\n", s.Name, s.Address, s.City, s.Province, s.PostalCode, s.PhoneNumber)
	}
	return nil
}
