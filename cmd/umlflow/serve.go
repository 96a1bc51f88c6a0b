package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/umlflow/pkg/config"
	"github.com/ravi-parthasarathy/umlflow/pkg/server"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	var (
		addr     string
		output   string
		krokiURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the save, model-list and Kroki proxy routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = cfg.Addr
			}
			if output != "" {
				cfg.OutputDir = output
			}
			handler := server.New(server.Config{
				UMLDir:   nodeEnv().UMLDir(),
				KrokiURL: krokiBase(krokiURL),
			})
			srv := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := signalContext(cmd.Context())
			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", "addr", addr, "output", cfg.OutputDir)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve: %w", err)
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $UMLFLOW_ADDR or "+config.DefaultAddr+")")
	cmd.Flags().StringVar(&output, "output", "", "output directory; saved diagrams go to its uml subdirectory")
	cmd.Flags().StringVar(&krokiURL, "kroki-url", "", "extra Kroki host to allow through the proxy")
	return cmd
}
