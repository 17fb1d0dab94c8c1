package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// natsMessage adapts a core NATS message. Ack and Nack are no-ops unless the
// subject is bound to a JetStream consumer.
type natsMessage struct {
	settlement
	raw      *nats.Msg
	received time.Time
}

func (m *natsMessage) Body() []byte { return m.raw.Data }

func (m *natsMessage) Header(key string) string { return m.raw.Header.Get(key) }

// Headers flattens multi-valued NATS headers to their first value.
func (m *natsMessage) Headers() map[string]string {
	if len(m.raw.Header) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.raw.Header))
	for k := range m.raw.Header {
		out[k] = m.raw.Header.Get(k)
	}
	return out
}

func (m *natsMessage) ID() string { return m.raw.Header.Get(nats.MsgIdHdr) }

func (m *natsMessage) Source() string { return m.raw.Subject }

func (m *natsMessage) Timestamp() time.Time { return m.received }

func (m *natsMessage) Attempts() int {
	md, err := m.raw.Metadata()
	if err != nil || md == nil {
		return 1
	}
	return int(md.NumDelivered)
}

func (m *natsMessage) Ack(ctx context.Context) error {
	return m.settle(ctx, func() error { return ignoreCoreNATS(m.raw.Ack()) })
}

func (m *natsMessage) Nack(ctx context.Context) error {
	return m.settle(ctx, func() error { return ignoreCoreNATS(m.raw.Nak()) })
}

func ignoreCoreNATS(err error) error {
	if errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound) {
		return nil
	}
	return err
}
