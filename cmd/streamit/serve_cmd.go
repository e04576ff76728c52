package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/streamit/internal/app"
	"github.com/aussiebroadwan/streamit/internal/devapi"
	"github.com/aussiebroadwan/streamit/pkg/slogx"
)

const shutdownGracePeriod = 5 * time.Second

func newServeCommand(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local dashboard over the session, with /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if addr == "" {
				addr = application.Config().MetricsAddr
			}
			application.Logger().Info("dashboard starting", "addr", addr)
			return serve(cmd.Context(), addr, application.Dashboard())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env METRICS_ADDR)")
	return cmd
}

func newDevAPICommand(flags *rootFlags) *cobra.Command {
	var callback string

	cmd := &cobra.Command{
		Use:   "devapi",
		Short: "Run a local StreamIt API for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := flags.config()
			logger := slogx.New(slogx.Config{
				Service: "streamit-devapi",
				Version: app.BuildVersion,
				Env:     cfg.Env,
				Level:   cfg.LogLevel,
				Format:  cfg.LogFormat,
			})

			api := devapi.New(devapi.Config{
				Secret:      []byte(cfg.DevAPISecret),
				TokenTTL:    cfg.DevAPITokenTTL,
				CallbackURL: callback,
				Logger:      logger,
			})
			return api.ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", cfg.DevAPIPort))
		},
	}

	cmd.Flags().StringVar(&callback, "callback", "http://localhost:9464/auth/callback", "where the login entry point redirects with ?code=")
	return cmd
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 3 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGracePeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return err
	}
	return nil
}
