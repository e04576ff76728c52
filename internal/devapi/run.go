package devapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ShutdownGracePeriod bounds how long in-flight requests get on shutdown.
const ShutdownGracePeriod = 5 * time.Second

// ListenAndServe serves s on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 3 * time.Second,
	}

	s.Start()
	defer s.Stop()

	s.logger.Info("dev api starting", "addr", addr)

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
		s.logger.Info("shutting down dev api...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownGracePeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("graceful server shutdown failed", "error", err)
		if err := server.Close(); err != nil {
			s.logger.Error("error closing server", "error", err)
		}
		return err
	}

	s.logger.Info("dev api stopped")
	return nil
}
