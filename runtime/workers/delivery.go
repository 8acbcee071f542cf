package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// DeliveryWorker is the single consumer of the delivery queue and the only
// place outbound I/O happens. A slow recipient delays every other recipient.
type DeliveryWorker struct {
	log         *slog.Logger
	queue       contract.IDeliveryQueue
	registry    contract.IRegistry
	monitoring  *observability.Monitoring
	sendTimeout time.Duration
}

// NewDeliveryWorker builds the consumer. A zero sendTimeout lets a hung send
// block until the connection gives up.
func NewDeliveryWorker(log *slog.Logger, queue contract.IDeliveryQueue, registry contract.IRegistry,
	monitoring *observability.Monitoring, sendTimeout time.Duration) *DeliveryWorker {
	return &DeliveryWorker{
		log:         log,
		queue:       queue,
		registry:    registry,
		monitoring:  monitoring,
		sendTimeout: sendTimeout,
	}
}

func (w *DeliveryWorker) Run(ctx context.Context) error {
	w.log.Debug("Starting delivery worker")
	for {
		envelope, err := w.queue.Pop(ctx)
		if err != nil {
			w.log.Debug("Stopping delivery worker")
			return ctx.Err()
		}
		w.Deliver(ctx, envelope)
	}
}

// Deliver sends one envelope if its recipient is still connected.
// Envelopes for vanished recipients are dropped; send failures are logged
// and never reach the producer.
func (w *DeliveryWorker) Deliver(ctx context.Context, envelope domain.Envelope) {
	channel, ok := w.registry.Lookup(envelope.Recipient)
	if !ok || !channel.IsOpen() {
		w.log.Debug("Recipient gone, dropping envelope",
			"recipient", envelope.Recipient, "kind", envelope.Payload.Kind())
		w.monitoring.IncrDropped()
		return
	}

	sendCtx := ctx
	if w.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.sendTimeout)
		defer cancel()
	}

	if err := channel.Send(sendCtx, envelope.Payload); err != nil {
		w.log.Warn("Failed to deliver envelope",
			"recipient", envelope.Recipient, "kind", envelope.Payload.Kind(), "error", err)
		w.monitoring.IncrFailed()
		return
	}
	w.monitoring.IncrDelivered()
}
