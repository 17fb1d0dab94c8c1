package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// ErrRateRequired is returned by New when the formatted rate is empty.
var ErrRateRequired = errors.New("ratelimit: rate is required")

// Result reports the state of a key's window after a hit.
type Result struct {
	Limit     int64
	Remaining int64
	Reset     time.Time
	Reached   bool
}

// Limiter counts hits per key within a window.
type Limiter struct {
	inst *limiter.Limiter
}

// NewMemoryStore returns a process-local store.
func NewMemoryStore(prefix string) limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})
}

// NewRedisStore returns a store shared by every instance using client.
func NewRedisStore(client *redis.Client, prefix string) (limiter.Store, error) {
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   prefix,
		MaxRetry: 3,
	})
}

// New builds a Limiter from a formatted rate such as "5-M" (5 per minute).
// Accepted periods are S, M, H and D.
func New(store limiter.Store, formatted string) (*Limiter, error) {
	formatted = strings.TrimSpace(formatted)
	if formatted == "" {
		return nil, ErrRateRequired
	}

	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}

	return &Limiter{inst: limiter.New(store, rate)}, nil
}

// Hit counts one request for key and reports whether the limit is exceeded.
func (l *Limiter) Hit(ctx context.Context, key string) (Result, error) {
	lc, err := l.inst.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Limit:     lc.Limit,
		Remaining: lc.Remaining,
		Reset:     time.Unix(lc.Reset, 0),
		Reached:   lc.Reached,
	}, nil
}

// HTTPMiddleware throttles requests by the key that keyFn returns. The
// X-RateLimit-* headers are set on every response.
func (l *Limiter) HTTPMiddleware(
	keyFn func(r *http.Request) string,
	onReached func(w http.ResponseWriter, r *http.Request),
	onError func(w http.ResponseWriter, r *http.Request, err error),
) func(http.Handler) http.Handler {
	mw := mstdlib.NewMiddleware(l.inst,
		mstdlib.WithKeyGetter(keyFn),
		mstdlib.WithLimitReachedHandler(onReached),
		mstdlib.WithErrorHandler(onError),
	)

	return mw.Handler
}
