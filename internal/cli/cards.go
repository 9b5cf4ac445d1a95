package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/storefront"
)

func NewCardsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage saved cards",
	}

	var cached bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(app *storefront.App) error {
				var (
					cards []domain.SavedCard
					err   error
				)
				if cached {
					cards, err = app.Cards.CachedCards(cmd.Context())
				} else {
					cards, err = app.Cards.Cards(cmd.Context())
				}
				if err != nil {
					return fail("Cards", err)
				}
				if opts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), cards)
				}
				if len(cards) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved cards")
				}
				for _, c := range cards {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  **** %s  %s  %s\n", c.ID, c.Last4, c.Expiry, c.Holder)
				}
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&cached, "cached", false, "read the local mirror instead of the server")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <card-id>",
		Short: "Delete a saved card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd, func(app *storefront.App) error {
				if err := app.Cards.DeleteCard(cmd.Context(), args[0]); err != nil {
					return fail("Cards", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted card %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}
