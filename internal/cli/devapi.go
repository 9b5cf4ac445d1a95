package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/devapi"
)

func NewDevAPICommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devapi",
		Short: "In-memory commerce backend for local development",
	}

	var (
		addr, userID   string
		declinePercent int
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dev backend until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.cfg.DevAPI.Addr
			}
			logger := opts.cfg.NewLogger(cmd.ErrOrStderr())

			store := devapi.NewMemoryStore()
			defer store.Close()
			devapi.SeedDemo(store)
			if declinePercent < 0 || declinePercent > 100 {
				return fmt.Errorf("--decline-percent must be between 0 and 100, got %d", declinePercent)
			}
			if declinePercent > 0 {
				store.SetChargeDecider(devapi.RandomDecider{DeclinePercent: declinePercent})
			}
			server := devapi.NewServer(store, devapi.WithLogger(logger))
			access, _ := server.IssueToken(userID)

			srv := &http.Server{
				Addr:         addr,
				Handler:      server.Handler(),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.WithField("addr", addr).Info("dev backend starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "export STOREFRONT_ACCESS_TOKEN=%s STOREFRONT_USER_ID=%s\n", access, userID)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down dev backend")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			return nil
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to devapi.addr)")
	serveCmd.Flags().StringVar(&userID, "user", "demo", "user id for the printed access token")
	serveCmd.Flags().IntVar(&declinePercent, "decline-percent", 0, "share of payment confirmations to decline")
	cmd.AddCommand(serveCmd)

	return cmd
}
