package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"miniloan/internal/event"
	"miniloan/internal/infrastructure/monitoring"

	amqp "github.com/rabbitmq/amqp091-go"
)

type LoanNotifier interface {
	SendLoanNotification(ctx context.Context, topic event.Topic, ev event.LoanEvent) error
}

type LoanEventHandler struct {
	notifier LoanNotifier
	logger   *slog.Logger
}

func NewLoanEventHandler(notifier LoanNotifier, logger *slog.Logger) *LoanEventHandler {
	return &LoanEventHandler{
		notifier: notifier,
		logger:   logger.With("component", "LoanEventHandler"),
	}
}

// HandleDelivery acks or rejects every delivery exactly once. Failed sends are
// dropped rather than requeued so a bad address cannot block the queue.
func (h *LoanEventHandler) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	logCtx := h.logger.With(slog.Uint64("deliveryTag", d.DeliveryTag), slog.String("routingKey", d.RoutingKey))
	topic := event.Topic(d.RoutingKey)

	if !slices.Contains(event.LoanTopics, topic) {
		logCtx.WarnContext(ctx, "Received message with unknown routing key. Discarding.")
		monitoring.RecordNotification(d.RoutingKey, "discarded")
		_ = d.Reject(false)
		return
	}

	var payload event.LoanEvent
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		logCtx.ErrorContext(ctx, "Failed to unmarshal loan event", "error", err, "body", string(d.Body))
		monitoring.RecordNotification(d.RoutingKey, "malformed")
		_ = d.Nack(false, false)
		return
	}

	logCtx = logCtx.With(slog.Int64("loanID", payload.LoanID))
	if err := h.notifier.SendLoanNotification(ctx, topic, payload); err != nil {
		logCtx.ErrorContext(ctx, "Failed to send loan notification", "error", err)
		monitoring.RecordNotification(d.RoutingKey, "failed")
		_ = d.Nack(false, false)
		return
	}

	monitoring.RecordNotification(d.RoutingKey, "sent")
	if err := d.Ack(false); err != nil {
		logCtx.ErrorContext(ctx, "Failed to acknowledge message after successful processing", "error", err)
		return
	}
	logCtx.InfoContext(ctx, "Successfully processed and acknowledged message")
}
