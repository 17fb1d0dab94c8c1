package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 100

// maxKeptErrors bounds how many task errors Wait can report.
const maxKeptErrors = 64

// ErrSaturated is reported by TryGo when every slot is taken.
var ErrSaturated = errors.New("goroutine: maximum goroutine limit reached")

// ErrClosed is reported by TryGo after Wait has been called.
var ErrClosed = errors.New("goroutine: manager is closed")

// Manager runs background tasks with a configurable concurrency limit.
//
// Task errors are logged when they happen; the most recent ones are also
// returned by Wait so shutdown can report them.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	dropped int
	wg      sync.WaitGroup
	sema    chan struct{}
	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{
		sema: make(chan struct{}, maxGoroutine),
	}
}

// Go schedules f and logs a warning when it could not be scheduled.
func (g *Manager) Go(pCtx context.Context, name string, f func(ctx context.Context) error) {
	if err := g.TryGo(pCtx, name, f); err != nil {
		slog.WarnContext(pCtx, "background task skipped", "task", name, "because", err)
	}
}

// TryGo schedules f in a goroutine if the manager is open and has capacity.
func (g *Manager) TryGo(pCtx context.Context, name string, f func(ctx context.Context) error) error {
	if g == nil {
		return ErrClosed
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		return ErrClosed
	}

	select {
	case g.sema <- struct{}{}:
	default:
		return ErrSaturated
	}

	g.wg.Add(1)
	go g.run(pCtx, name, f)

	return nil
}

func (g *Manager) run(ctx context.Context, name string, f func(ctx context.Context) error) {
	defer g.wg.Done()
	defer func() {
		<-g.sema

		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic occurred in background task", "task", name, "because", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic occurred in background task", "task", name, "because", rvr, "stack", string(stack))
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "background task canceled", "task", name, "because", err)
		return
	}

	if err := f(ctx); err != nil {
		slog.ErrorContext(ctx, "background task failed", "task", name, "error", err)
		g.record(err)
	}
}

func (g *Manager) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.errs) == maxKeptErrors {
		g.errs = g.errs[1:]
		g.dropped++
	}
	g.errs = append(g.errs, err)
}

// Wait stops accepting tasks, blocks until running ones finish and returns
// the most recent task errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dropped > 0 {
		slog.Warn("older background task errors were discarded", "count", g.dropped)
	}

	return errors.Join(g.errs...)
}
