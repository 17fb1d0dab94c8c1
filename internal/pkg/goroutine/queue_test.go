package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestQueueKeepsTasksWhileWorkersAreBusy(t *testing.T) {
	q := NewQueue("test", 2, 1)

	release := make(chan struct{})
	var ran atomic.Int32
	for range 10 {
		err := q.Submit(context.Background(), func(context.Context) error {
			<-release
			ran.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if q.Len() < 8 {
		t.Fatalf("pending = %d, want at least 8 behind two busy workers", q.Len())
	}

	close(release)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if ran.Load() != 10 {
		t.Fatalf("ran = %d, want 10", ran.Load())
	}
}

func TestQueueCloseReportsErrorsAndRefusesWork(t *testing.T) {
	q := NewQueue("test", 1, 0)
	errBoom := errors.New("boom")

	_ = q.Submit(context.Background(), func(context.Context) error { return errBoom })
	_ = q.Submit(context.Background(), func(context.Context) error { panic("boom") })

	if err := q.Close(); !errors.Is(err, errBoom) {
		t.Fatalf("Close() = %v, want %v", err, errBoom)
	}
	if err := q.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close = %v, want ErrClosed", err)
	}
}
