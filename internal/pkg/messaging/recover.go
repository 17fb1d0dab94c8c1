package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// dispatch runs handler, turning a panic into an error, then acks or nacks
// when autoAck is set and the handler did not respond itself.
func dispatch(ctx context.Context, kind string, handler Handler, msg delivery, autoAck bool) error {
	err := callHandlerWithRecover(ctx, kind, func() error { return handler(ctx, msg) })
	if !autoAck || msg.settled() {
		return err
	}

	if err == nil {
		return msg.Ack(ctx)
	}
	if nerr := msg.Nack(ctx); nerr != nil {
		slog.ErrorContext(ctx, "messaging: nack failed", "kind", kind, "source", msg.Source(), "error", nerr)
	}
	return err
}

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}
