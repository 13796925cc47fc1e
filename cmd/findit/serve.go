package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/findit/internal/api"
	"github.com/erazemk/findit/internal/catalog"
	"github.com/erazemk/findit/internal/store"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr   string
		camSrc string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the findit HTTP API",
		Example: `  # SQLite storage, no camera (uploads only)
  findit serve

  # Serve a still image as the camera, bolt storage
  findit serve --camera still:./desk.jpg --storage bolt --db findit.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("camera") {
				cfg.Camera.Source = camSrc
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()

			kv, err := openStore(ctx, cfg.Storage)
			if err != nil {
				slog.Error("failed to open storage", "error", err)
				return err
			}
			defer kv.Close()

			cat, err := catalog.Open(ctx, store.NewCollection(kv))
			if err != nil {
				slog.Error("failed to load catalog", "error", err)
				return err
			}

			cam, err := openCamera(cfg.Camera)
			if err != nil {
				slog.Error("failed to configure camera", "error", err)
				return err
			}
			defer cam.Stop()

			handler := api.LoggingMiddleware(api.NewRouter(cat, cam, api.NewStaging(cfg.Staging.TTL)))

			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				slog.Info("server started", "addr", cfg.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-egCtx.Done()
				slog.Info("shutting down server")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("server forced to shutdown", "error", err)
					return err
				}
				return nil
			})

			if err := eg.Wait(); err != nil {
				slog.Error("server error", "error", err)
				return err
			}

			slog.Info("server stopped, closing storage")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")
	cmd.Flags().StringVar(&camSrc, "camera", "none", "camera source: none, still:<path> or v4l2[:<device>]")

	return cmd
}
