package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
)

// Run serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the server
// fails. In-flight requests then get the shutdown timeout to drain. A nil ln
// listens on the configured address.
func Run(ctx context.Context, srv *Server, ln net.Listener, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	go func() {
		if ln != nil {
			srvErr <- srv.Serve(ln)
			return
		}
		srvErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down http server", "reason", context.Cause(ctx))
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-srvErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
