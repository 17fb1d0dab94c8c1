package messaging

import (
	"context"
	"io"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const memoryMaxAttempts = 5

// Memory is an in-process broker for single-node deployments and tests.
//
// Every consumer group on a destination receives each message once; within
// a group messages go to whichever subscriber is free. Nacked messages are
// redelivered up to five attempts. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	groups map[string]map[string]*memoryGroup
	closed bool
	done   chan struct{}
	seq    atomic.Uint64
}

type memoryGroup struct {
	ch chan *memoryMessage
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{
		groups: make(map[string]map[string]*memoryGroup),
		done:   make(chan struct{}),
	}
}

// Close stops all consumers. Pending messages are dropped.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *Memory) group(destination, name string) (*memoryGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.ErrClosedPipe
	}

	byName, ok := m.groups[destination]
	if !ok {
		byName = make(map[string]*memoryGroup)
		m.groups[destination] = byName
	}

	g, ok := byName[name]
	if !ok {
		g = &memoryGroup{ch: make(chan *memoryMessage, 256)}
		byName[name] = g
	}
	return g, nil
}

// Publish fans the message out to every group subscribed to destination.
// A destination without subscribers discards the message.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := checkPublish(ctx, destination); err != nil {
		return PublishResult{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return PublishResult{}, io.ErrClosedPipe
	}
	groups := make([]*memoryGroup, 0, len(m.groups[destination]))
	for _, g := range m.groups[destination] {
		groups = append(groups, g)
	}
	m.mu.Unlock()

	id := strconv.FormatUint(m.seq.Add(1), 10)
	now := time.Now()

	for _, g := range groups {
		copyFor := &memoryMessage{
			broker:    m,
			group:     g,
			id:        id,
			source:    destination,
			body:      append([]byte(nil), msg.Body...),
			headers:   maps.Clone(msg.Headers),
			timestamp: now,
			attempts:  1,
		}
		if msg.Delay > 0 {
			go m.deliverAfter(g, copyFor, msg.Delay)
			continue
		}
		select {
		case g.ch <- copyFor:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		case <-m.done:
			return PublishResult{}, io.ErrClosedPipe
		}
	}

	return PublishResult{MessageID: id, Destination: destination, Timestamp: now}, nil
}

func (m *Memory) deliverAfter(g *memoryGroup, msg *memoryMessage, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-m.done:
		return
	}

	select {
	case g.ch <- msg:
	case <-m.done:
	}
}

// Consume delivers messages for source to handler until ctx is done or the
// broker is closed. Consumers without WithGroup share the default group.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := checkConsume(ctx, source, handler); err != nil {
		return err
	}

	co := newConsumeOptions(opts...)
	g, err := m.group(source, co.group)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case msg := <-g.ch:
					//nolint:errcheck // redelivery is driven by Nack
					_ = dispatch(ctx, "memory", handler, msg, co.autoAck)
				case <-ctx.Done():
					return
				case <-m.done:
					return
				}
			}
		})
	}
	wg.Wait()

	return ctx.Err()
}

type memoryMessage struct {
	broker    *Memory
	group     *memoryGroup
	id        string
	source    string
	body      []byte
	headers   map[string]string
	timestamp time.Time
	attempts  int

	settlement
}

func (m *memoryMessage) Body() []byte { return m.body }

func (m *memoryMessage) Header(key string) string { return m.headers[key] }

func (m *memoryMessage) Headers() map[string]string { return m.headers }

func (m *memoryMessage) ID() string { return m.id }

func (m *memoryMessage) Source() string { return m.source }

func (m *memoryMessage) Attempts() int { return m.attempts }

func (m *memoryMessage) Timestamp() time.Time { return m.timestamp }

func (m *memoryMessage) Ack(context.Context) error {
	m.done.Store(true)
	return nil
}

func (m *memoryMessage) Nack(context.Context) error {
	if m.done.Swap(true) || m.attempts >= memoryMaxAttempts {
		return nil
	}

	retry := &memoryMessage{
		broker:    m.broker,
		group:     m.group,
		id:        m.id,
		source:    m.source,
		body:      m.body,
		headers:   m.headers,
		timestamp: m.timestamp,
		attempts:  m.attempts + 1,
	}
	go m.broker.deliverAfter(m.group, retry, time.Duration(m.attempts)*10*time.Millisecond)
	return nil
}
