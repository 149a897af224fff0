package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const defaultWriteTimeout = 15 * time.Second

// RunHTTPServer starts the HTTP server and handles shutdown on context cancellation.
// writeTimeout must cover the slowest handler, which waits on the LLM; 0 uses 15s.
func RunHTTPServer(ctx context.Context, mux http.Handler, addr string, writeTimeout time.Duration, logger *slog.Logger) error {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Start the HTTP server in its own goroutine.
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		// the listener failed before shutdown was requested
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "err", err)
		return err
	}

	return nil
}
