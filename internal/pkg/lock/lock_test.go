package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "otp.purge", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := l.Acquire(ctx, "otp.purge", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second acquire err = %v, want ErrNotAcquired", err)
	}

	other, err := l.Acquire(ctx, "other", time.Minute)
	if err != nil {
		t.Fatalf("independent key: %v", err)
	}
	defer other(ctx)

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	again, err := l.Acquire(ctx, "otp.purge", time.Minute)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}

	// A stale release must not free the new holder.
	if err := release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, err := l.Acquire(ctx, "otp.purge", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("stale release freed the lock, err = %v", err)
	}
	_ = again(ctx)
}

func TestLocal(t *testing.T) {
	exerciseLocker(t, NewLocal())
}

func TestLocalExpiry(t *testing.T) {
	l := NewLocal()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if _, err := l.Acquire(context.Background(), "k", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := l.Acquire(context.Background(), "k", time.Second); err != nil {
		t.Fatalf("expired lock should be free: %v", err)
	}
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { client.Close() })

	exerciseLocker(t, NewRedis(client, "otpgate:lock:"))
}
