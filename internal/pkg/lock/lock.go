// Package lock provides short-lived named locks so that a periodic job runs
// on one instance at a time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock: already held")

// Release gives the lock back. Releasing a lock that already expired is a no-op.
type Release func(ctx context.Context) error

// Locker acquires a lock on key that expires after ttl unless released.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// releaseScript deletes the key only while it still carries our token, so a
// holder whose ttl ran out cannot free a lock taken by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares locks across every instance using the same server.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	fk := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, fk, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, r.client, []string{fk}, token).Err()
	}, nil
}

// Local locks within one process. It is used when no redis is configured.
type Local struct {
	mu   sync.Mutex
	held map[string]string
	now  func() time.Time
	exp  map[string]time.Time
}

func NewLocal() *Local {
	return &Local{
		held: make(map[string]string),
		exp:  make(map[string]time.Time),
		now:  time.Now,
	}
}

func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok && l.now().Before(l.exp[key]) {
		return nil, ErrNotAcquired
	}

	token := uuid.NewString()
	l.held[key] = token
	l.exp[key] = l.now().Add(ttl)

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		if l.held[key] == token {
			delete(l.held, key)
			delete(l.exp, key)
		}
		return nil
	}, nil
}
