package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned when a feature is not supported by the selected broker.
	ErrUnsupported = errors.New("messaging: unsupported operation")
	// ErrDestinationRequired is returned when the topic or subject is empty.
	ErrDestinationRequired = errors.New("messaging: destination is required")
	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
	// ErrGroupRequired is returned when a broker needs a consumer group and none was given.
	ErrGroupRequired = errors.New("messaging: consumer group is required")
)

// Messaging is a broker-agnostic client that can publish and consume messages.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher publishes messages to a destination (topic/subject).
type Publisher interface {
	// Publish sends a message to the destination.
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer consumes messages from a source (topic/subject).
type Consumer interface {
	// Consume blocks, delivering messages to handler until ctx is done or the
	// client is closed.
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message.
//
// With auto-ack enabled a nil error acks and a non-nil error requests
// redelivery; otherwise the handler must Ack or Nack itself.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage represents a broker-agnostic message to be published.
type OutgoingMessage struct {
	// Body is the message payload.
	Body []byte
	// Headers carry metadata such as the correlation id.
	Headers map[string]string
	// Delay defers delivery when the broker supports it.
	Delay time.Duration
}

// PublishResult carries optional broker-specific publish metadata.
type PublishResult struct {
	// MessageID is the broker-assigned message ID, when the broker exposes one.
	MessageID string
	// Destination is the topic or subject the message was published to.
	Destination string
	// Timestamp is when the broker accepted the message.
	Timestamp time.Time
}

// Message is a broker-agnostic received message.
type Message interface {
	// Body returns the message payload.
	Body() []byte
	// Header returns a single header value or "".
	Header(key string) string
	// Headers returns all headers.
	Headers() map[string]string
	// ID returns the broker message ID, if any.
	ID() string
	// Source returns the topic or subject the message came from.
	Source() string
	// Attempts returns how many times this message has been delivered.
	Attempts() int
	// Timestamp returns when the message was produced or received.
	Timestamp() time.Time

	// Ack acknowledges successful processing.
	Ack(ctx context.Context) error
	// Nack requests redelivery.
	Nack(ctx context.Context) error
}
