package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/datallboy/godepot/internal/api"
	"github.com/datallboy/godepot/internal/engine"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and all scheduled transfer tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup Signal Handling for Graceful Shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx, opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			appCtx := rt.app
			log := appCtx.Logger

			if err := rt.delivery.Ping(ctx); err != nil {
				log.Warn("Delivery service check failed: %v", err)
			}

			rt.settings.Watch()

			runner := engine.NewDownloader(appCtx, engine.NewChunkWriter(nil))
			mgr := engine.NewManager(ctx, appCtx, runner)
			defer mgr.Shutdown()

			if _, err := mgr.Restore(ctx); err != nil {
				log.Error("Failed to restore scheduled tasks: %v", err)
			}

			e := echo.New()
			api.RegisterRoutes(e, appCtx, mgr)

			srv := &http.Server{
				Addr:              ":" + appCtx.Config.Port,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("Listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				log.Info("Shutting down...")
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
