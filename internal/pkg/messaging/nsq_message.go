package messaging

import (
	"context"
	"encoding/hex"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

// nsqMessage adapts an NSQ delivery. Headers travel inside the envelope
// because NSQ has none of its own.
type nsqMessage struct {
	settlement
	raw     *nsq.Message
	topic   string
	headers map[string]string
	payload []byte
}

func newNSQMessage(topic string, raw *nsq.Message) *nsqMessage {
	m := &nsqMessage{raw: raw, topic: topic}
	m.headers, m.payload = openEnvelope(raw.Body)
	return m
}

func (m *nsqMessage) Body() []byte { return m.payload }
func (m *nsqMessage) Header(key string) string { return m.headers[key] }
func (m *nsqMessage) Headers() map[string]string { return m.headers }
func (m *nsqMessage) ID() string { return hex.EncodeToString(m.raw.ID[:]) }
func (m *nsqMessage) Source() string { return m.topic }
func (m *nsqMessage) Attempts() int { return int(m.raw.Attempts) }
func (m *nsqMessage) Timestamp() time.Time { return time.Unix(0, m.raw.Timestamp) }

func (m *nsqMessage) Ack(ctx context.Context) error {
	return m.settle(ctx, func() error {
		m.raw.Finish()
		return nil
	})
}

// Nack requeues with nsqd's default backoff.
func (m *nsqMessage) Nack(ctx context.Context) error {
	return m.settle(ctx, func() error {
		m.raw.Requeue(-1)
		return nil
	})
}
