package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// DefaultQueueWorkers is used when NewQueue receives a non-positive count.
const DefaultQueueWorkers = 8

// Queue runs tasks in submission order on a fixed set of workers. Unlike
// Manager it never refuses an open submission: tasks that find every worker
// busy wait in the backlog until one frees up.
type Queue struct {
	name      string
	highWater int

	mu      sync.Mutex
	ready   *sync.Cond
	backlog []task
	closed  bool
	warned  bool

	wg     sync.WaitGroup
	errMu  sync.Mutex
	errs   []error
	pruned int
}

type task struct {
	ctx context.Context
	fn  func(ctx context.Context) error
}

// NewQueue starts workers goroutines. A backlog longer than highWater is
// logged once per excursion; zero disables the warning.
func NewQueue(name string, workers, highWater int) *Queue {
	if workers < 1 {
		workers = DefaultQueueWorkers
	}

	q := &Queue{name: name, highWater: highWater}
	q.ready = sync.NewCond(&q.mu)

	q.wg.Add(workers)
	for range workers {
		go q.work()
	}
	return q
}

// Submit appends fn to the backlog. It fails only after Close.
func (q *Queue) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.backlog = append(q.backlog, task{ctx: ctx, fn: fn})
	switch n := len(q.backlog); {
	case q.highWater > 0 && n > q.highWater && !q.warned:
		q.warned = true
		slog.WarnContext(ctx, "background queue is backing up", "queue", q.name, "pending", n)
	case n <= q.highWater/2:
		q.warned = false
	}

	q.ready.Signal()
	return nil
}

// Len reports how many tasks are waiting for a worker.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Close stops accepting tasks, waits until the backlog is drained and
// returns the most recent task errors.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.ready.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()

	q.errMu.Lock()
	defer q.errMu.Unlock()
	if q.pruned > 0 {
		slog.Warn("older queued task errors were discarded", "queue", q.name, "count", q.pruned)
	}
	return errors.Join(q.errs...)
}

func (q *Queue) next() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.backlog) == 0 && !q.closed {
		q.ready.Wait()
	}
	if len(q.backlog) == 0 {
		return task{}, false
	}

	t := q.backlog[0]
	q.backlog[0] = task{}
	q.backlog = q.backlog[1:]
	return t, true
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		t, ok := q.next()
		if !ok {
			return
		}
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(t.ctx, "panic occurred in queued task", "queue", q.name, "because", rvr,
				"stack", stacktrace.InternalPaths(debug.Stack()))
		}
	}()

	if err := t.fn(t.ctx); err != nil {
		slog.ErrorContext(t.ctx, "queued task failed", "queue", q.name, "error", err)
		q.record(err)
	}
}

func (q *Queue) record(err error) {
	q.errMu.Lock()
	defer q.errMu.Unlock()

	if len(q.errs) == maxKeptErrors {
		q.errs = q.errs[1:]
		q.pruned++
	}
	q.errs = append(q.errs, err)
}
