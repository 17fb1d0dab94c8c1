package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

func TestPublishAudit(t *testing.T) {
	broker := messaging.NewMemory()
	t.Cleanup(func() { broker.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan messaging.Message, 64)
	go broker.Consume(ctx, event.OTPAuditDestination, func(_ context.Context, msg messaging.Message) error {
		got <- msg
		return nil
	}, messaging.WithGroup(event.OTPAuditConsumerNotification), messaging.WithAutoAck(true))

	pub := NewMessaging(broker, instrument.NewNoop())
	pub.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	cctx := instrument.SetCorrelationID(context.Background(), "cid-42")

	// the memory broker drops messages published before the consumer subscribes
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(2 * time.Second)

	for {
		if err := pub.PublishAudit(cctx, "OTP Generated", valueobject.JSONMap{"email": "a@x.com"}); err != nil {
			t.Fatalf("publish: %v", err)
		}

		select {
		case msg := <-got:
			if msg.Header(event.HeaderCorrelationID) != "cid-42" {
				t.Fatalf("cID header = %q", msg.Header(event.HeaderCorrelationID))
			}
			var payload event.OTPAuditMessage
			if err := json.Unmarshal(msg.Body(), &payload); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if payload.Subject != "OTP Generated" || payload.Payload["email"] != "a@x.com" || payload.OccurredAt.IsZero() {
				t.Fatalf("payload = %+v", payload)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("audit not delivered")
		}
	}
}
