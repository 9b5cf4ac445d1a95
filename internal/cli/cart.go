package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/service"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/storefront"
)

type addOptions struct {
	Quantity int
	Size     string
	Color    string
}

func NewCartCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the cart",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(app *storefront.App) error {
				if err := app.Carts.Refresh(cmd.Context()); err != nil {
					return fail("Cart", err)
				}
				return printCart(cmd.OutOrStdout(), opts.Format, app.Store.Snapshot())
			})
		},
	})

	add := &addOptions{}
	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			return mutateCart(opts, cmd, func(ctx context.Context, app *storefront.App) error {
				return app.Carts.AddItem(ctx, service.AddItemInput{
					ProductID: productID,
					Quantity:  add.Quantity,
					Size:      add.Size,
					ColorHex:  add.Color,
				})
			})
		},
	}
	addCmd.Flags().IntVarP(&add.Quantity, "qty", "q", 1, "quantity")
	addCmd.Flags().StringVar(&add.Size, "size", "", "size variant")
	addCmd.Flags().StringVar(&add.Color, "color", "", "color as hex, e.g. #1a2b3c")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "qty <cart-item-id> <quantity>",
		Short: "Set the quantity of a cart row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid cart item id %q", args[0])
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return mutateCart(opts, cmd, func(ctx context.Context, app *storefront.App) error {
				return app.Carts.UpdateQuantity(ctx, itemID, qty)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <cart-item-id>",
		Short: "Remove a cart row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid cart item id %q", args[0])
			}
			return mutateCart(opts, cmd, func(ctx context.Context, app *storefront.App) error {
				return app.Carts.RemoveItem(ctx, itemID)
			})
		},
	})

	return cmd
}

// mutateCart loads the cart, applies fn and prints the result. A locked
// cart is reported with the resume/cancel hint.
func mutateCart(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, *storefront.App) error) error {
	return withApp(opts, cmd, func(app *storefront.App) error {
		ctx := cmd.Context()
		if err := app.Carts.Refresh(ctx); err != nil {
			return fail("Cart", err)
		}
		if err := fn(ctx, app); err != nil {
			return fail("Cart", err)
		}
		return printCart(cmd.OutOrStdout(), opts.Format, app.Store.Snapshot())
	})
}

func printCart(w io.Writer, format string, cart domain.CartAggregate) error {
	if format == "json" {
		return printJSON(w, cart)
	}
	fmt.Fprintf(w, "Cart (%s)\n", cart.Status)
	if len(cart.Items) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for _, it := range cart.Items {
		variant := ""
		if it.Size != "" || it.ColorHex != "" {
			variant = fmt.Sprintf(" [%s %s]", it.Size, it.ColorHex)
		}
		fmt.Fprintf(w, "  #%d  %s%s  %d x %s = %s\n",
			it.CartItemID, it.Name, variant, it.Quantity, it.UnitPrice.StringFixed(2), it.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(w, "Items: %d  Subtotal: %s\n", cart.Meta.TotalItems, cart.Meta.Subtotal.StringFixed(2))
	if !service.CanAddItem(cart.Status) {
		fmt.Fprintln(w, "A checkout is in progress: run `storefront checkout resume` or `storefront checkout cancel`.")
	}
	return nil
}
