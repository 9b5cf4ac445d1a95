package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/publisher"
)

func NewEventsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published checkout events",
	}

	var group string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print checkout events as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.cfg.Kafka.Brokers) == 0 {
				return errors.New("no kafka brokers configured (set kafka.brokers or STOREFRONT_KAFKA_BROKERS)")
			}
			logger := opts.cfg.NewLogger(cmd.ErrOrStderr())
			consumer := publisher.NewConsumer(opts.cfg.Kafka.Topic, group, logger, opts.cfg.Kafka.Brokers...)
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return consumer.Run(ctx, func(e publisher.CheckoutEvent) error {
				if opts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), e)
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-18s order=%d total=%s %s\n",
					e.OccurredAt.Format("15:04:05"), e.Type, e.OrderID, e.Total.StringFixed(2), e.Reason)
				return err
			})
		},
	}
	tailCmd.Flags().StringVar(&group, "group", "storefront-tail", "kafka consumer group")
	cmd.AddCommand(tailCmd)

	return cmd
}
