package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
)

// stopList collects the consumers a broker client must stop on Close.
// After Close it refuses new entries with io.ErrClosedPipe.
type stopList struct {
	mu     sync.Mutex
	stops  []func() error
	closed bool
}

func (s *stopList) add(stop func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.stops = append(s.stops, stop)
	return nil
}

// stopAll runs every stop once. first is false when it already ran.
func (s *stopList) stopAll() (first bool, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, nil
	}
	s.closed = true
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	for _, stop := range stops {
		err = errors.Join(err, stop())
	}
	return true, err
}

func checkPublish(ctx context.Context, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if destination == "" {
		return ErrDestinationRequired
	}
	return nil
}

func checkConsume(ctx context.Context, source string, handler Handler) error {
	if err := checkPublish(ctx, source); err != nil {
		return err
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return nil
}
