package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const defaultConsumerConcurrency = 4

// RegisterMQConsumer starts one background consumer per enabled entry of
// modules.notification.consumer_names. An empty list enables all of them.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	handler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.notification.consumer_names")
	concurrency := cfg.GetInt("modules.notification.consumer_concurrency")
	if concurrency <= 0 {
		concurrency = defaultConsumerConcurrency
	}

	consumers := []struct {
		name    string
		source  string
		handler messaging.Handler
	}{
		{
			name:    event.OTPAuditConsumerNotification,
			source:  event.OTPAuditDestination,
			handler: handler.OTPAudit,
		},
	}

	for _, consumer := range consumers {
		if len(enabled) > 0 && !slices.Contains(enabled, consumer.name) {
			continue
		}

		routine.Go(ctx, consumer.name, func(pCtx context.Context) error {
			slog.InfoContext(pCtx, "consumer started", "consumer", consumer.name, "source", consumer.source)
			return messenger.Consume(pCtx,
				consumer.source,
				consumer.handler,
				messaging.WithGroup(consumer.name),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
				messaging.WithMaxInFlight(concurrency),
			)
		})
	}
}
