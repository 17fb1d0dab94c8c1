package messaging

import (
	"context"
	"sync/atomic"
)

// settlement lets only the first Ack or Nack of a delivery reach the broker.
type settlement struct {
	done atomic.Bool
}

func (s *settlement) settled() bool { return s.done.Load() }

func (s *settlement) settle(ctx context.Context, respond func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.done.Swap(true) {
		return nil
	}
	return respond()
}

// delivery is a received Message that tracks whether it was settled.
type delivery interface {
	Message
	settled() bool
}
