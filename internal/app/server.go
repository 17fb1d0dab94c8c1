package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
)

// Start serves HTTP and runs the purge scheduler. The returned channel is
// closed on SIGINT, SIGTERM or SIGHUP, or when the listener fails.
func (a *App) Start() <-chan struct{} {
	done := make(chan struct{})
	sigCtx, stopSignals := signal.NotifyContext(a.ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("otpgate listening", "address", a.httpServer.Addr)
		serveErr <- a.httpServer.ListenAndServe()
	}()

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	go func() {
		defer close(done)
		defer stopSignals()

		select {
		case <-sigCtx.Done():
			slog.Info("shutdown requested")
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server stopped", "error", err)
			}
		}
		a.cancel()
	}()

	return done
}

// Stop shuts down in dependency order: stop taking requests, let running
// purges finish, drain audit goroutines and consumers, then release clients.
func (a *App) Stop(ctx context.Context) {
	a.cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "http shutdown incomplete", "error", err)
	}

	if a.scheduler != nil {
		select {
		case <-a.scheduler.Stop().Done():
		case <-ctx.Done():
			slog.WarnContext(ctx, "purge job still running at shutdown")
		}
	}

	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "background tasks reported errors", "error", err)
	}

	a.runClosers(ctx)
	slog.InfoContext(ctx, "otpgate stopped")
}
