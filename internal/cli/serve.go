package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhydro/sewerflow/internal/api"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <network.json>",
		Short: "Serve the recalculation engine over HTTP",
		Long: `Serve loads a network file and exposes edit and recalculation endpoints
over HTTP. Edits accumulate in memory; POST /v1/changes runs a cycle and
the file is written back on shutdown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer sess.close(context.Background())

			if addr == "" {
				addr = sess.cfg.Server.Listen
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.New(sess.engine, sess.store, c.Logger).Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				c.Logger.Info("listening", "addr", addr, "network", args[0])
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			// Persist whatever the last committed cycle wrote.
			if err := sess.save(shutdownCtx); err != nil {
				return err
			}
			printSuccess("Server stopped, network saved")
			printFile(args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
