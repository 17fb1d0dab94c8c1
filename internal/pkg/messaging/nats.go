package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNATSURLRequired is returned by NewNATS without a URL.
var ErrNATSURLRequired = errors.New("messaging: nats url is required")

type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS publishes and consumes over core NATS, which delivers at most once.
// Delayed publishing is not available.
type NATS struct {
	conn *nats.Conn
	subs stopList
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}
	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}
	return &NATS{conn: conn}, nil
}

// Close unsubscribes every consumer, then drains the connection so queued
// publishes reach the server.
func (n *NATS) Close() error {
	first, err := n.subs.stopAll()
	if !first {
		return nil
	}
	if derr := n.conn.Drain(); derr != nil && !errors.Is(derr, nats.ErrConnectionClosed) {
		err = errors.Join(err, derr)
	}
	return err
}

// Publish sends msg and flushes, so a nil error means the server has it.
func (n *NATS) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := checkPublish(ctx, destination); err != nil {
		return PublishResult{}, err
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	out := &nats.Msg{Subject: destination, Data: msg.Body, Header: nats.Header{}}
	for k, v := range msg.Headers {
		if k != "" {
			out.Header.Set(k, v)
		}
	}
	if err := n.conn.PublishMsg(out); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats flush: %w", err)
	}
	return PublishResult{Destination: destination, Timestamp: time.Now()}, nil
}

// Consume joins the queue group named by WithGroup and blocks until ctx ends.
// The subscription callback only hands messages to a bounded buffer; the
// handlers run on their own goroutines.
func (n *NATS) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := checkConsume(ctx, source, handler); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)

	inbox := make(chan *nats.Msg, co.inFlight())
	quit := make(chan struct{})
	sub, err := n.conn.QueueSubscribe(source, co.group, func(m *nats.Msg) {
		select {
		case inbox <- m:
		case <-quit:
		}
	})
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	var workers sync.WaitGroup
	for range co.concurrency {
		workers.Go(func() {
			for {
				select {
				case m := <-inbox:
					//nolint:errcheck // dispatch logs handler failures
					_ = dispatch(ctx, "nats", handler, &natsMessage{raw: m, received: time.Now()}, co.autoAck)
				case <-quit:
					return
				}
			}
		})
	}

	var once sync.Once
	stop := func() (uerr error) {
		once.Do(func() {
			uerr = sub.Unsubscribe()
			close(quit)
			workers.Wait()
			if errors.Is(uerr, nats.ErrConnectionClosed) || errors.Is(uerr, nats.ErrBadSubscription) {
				uerr = nil
			}
		})
		return uerr
	}

	if err := n.subs.add(stop); err != nil {
		return errors.Join(err, stop())
	}

	<-ctx.Done()
	return errors.Join(ctx.Err(), stop())
}
