package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"companiond/internal/config"
	"companiond/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr         string
		defaultModel string
		cors         []string
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  companiond serve --addr :8080 --default-model qwen2.5-0.5b",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, g, lookupEnv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("default-model") {
				cfg.DefaultModel = defaultModel
			}
			if cmd.Flags().Changed("cors") {
				cfg.CORSOrigins = cors
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&defaultModel, "default-model", "", "Model selected at startup")
	cmd.Flags().StringSliceVar(&cors, "cors", nil, "Allowed CORS origins (comma separated)")
	return cmd
}

// serve runs the API until ctx is done, then drains requests and shuts the
// manager down.
func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.DefaultModel != "" {
		// A failed startup selection leaves the API up so a client can pick another model.
		if err := a.mgr.SelectByName(ctx, cfg.DefaultModel); err != nil {
			a.log.Error().Err(err).Str("model", cfg.DefaultModel).Msg("default model not loaded")
		}
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	mux := httpapi.NewMux(httpapi.FromManager(a.mgr), httpapi.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
		CORSOrigins:  cfg.CORSOrigins,
		BaseContext:  baseCtx,
		LogLevel:     cfg.LogLevel,
		Logger:       a.log.With().Str("component", "http").Logger(),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", cfg.Addr).Msg("companiond listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	a.log.Info().Msg("shutting down")
	// Streams end first so Shutdown does not wait on open /chat and /events bodies.
	cancelBase()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}
