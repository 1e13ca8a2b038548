package notify

import (
	"context"
	"encoding/json"
	"time"

	"jastip/internal/monitor"
	"jastip/pkg/log"
	"jastip/pkg/queue"
)

// Topics for order lifecycle events
const (
	TopicOrderValidated = "orders.validated"
	TopicOrderRejected  = "orders.rejected"
	TopicOrderSettled   = "orders.settled"
)

// OrderEvent payload published for buyer-facing notifications
type OrderEvent struct {
	OrderID       uint64  `json:"order_id"`
	OrderCode     string  `json:"order_code"`
	ParticipantID *uint64 `json:"participant_id,omitempty"`
	GuestID       *string `json:"guest_id,omitempty"`

	FinalAmount int64  `json:"final_amount,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
	Reason      string `json:"reason,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers buyer notifications for order transitions. Delivery is
// best effort: failures are logged, never returned to the caller.
type Notifier interface {
	NotifyOrderValidated(ctx context.Context, event OrderEvent)
	NotifyOrderRejected(ctx context.Context, event OrderEvent)
	NotifyOrderSettled(ctx context.Context, event OrderEvent)
}

// queueNotifier publishes events onto the message queue; the consumer on the
// other side performs the actual delivery.
type queueNotifier struct {
	q       queue.Queue
	metrics *monitor.MetricsCollector
}

// NewQueueNotifier creates a queue-backed notifier. A nil metrics collector
// disables recording.
func NewQueueNotifier(q queue.Queue, metrics *monitor.MetricsCollector) Notifier {
	return &queueNotifier{q: q, metrics: metrics}
}

// NotifyOrderValidated publishes an acceptance event
func (n *queueNotifier) NotifyOrderValidated(ctx context.Context, event OrderEvent) {
	n.publish(ctx, TopicOrderValidated, event)
}

// NotifyOrderRejected publishes a rejection event
func (n *queueNotifier) NotifyOrderRejected(ctx context.Context, event OrderEvent) {
	n.publish(ctx, TopicOrderRejected, event)
}

// NotifyOrderSettled publishes a settlement event
func (n *queueNotifier) NotifyOrderSettled(ctx context.Context, event OrderEvent) {
	n.publish(ctx, TopicOrderSettled, event)
}

func (n *queueNotifier) publish(ctx context.Context, topic string, event OrderEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.metrics.RecordNotification(topic, "error")
		log.WithFields(map[string]interface{}{
			"topic":    topic,
			"order_id": event.OrderID,
			"error":    err.Error(),
		}).Error("Failed to marshal notification event")
		return
	}

	if err := n.q.Publish(ctx, topic, data); err != nil {
		n.metrics.RecordNotification(topic, "error")
		log.WithFields(map[string]interface{}{
			"topic":    topic,
			"order_id": event.OrderID,
			"error":    err.Error(),
		}).Error("Failed to publish notification event")
		return
	}

	n.metrics.RecordNotification(topic, "published")
	log.WithFields(map[string]interface{}{
		"topic":    topic,
		"order_id": event.OrderID,
	}).Debug("Notification event published")
}

// NopNotifier discards all notifications; used in tests
type NopNotifier struct{}

func (NopNotifier) NotifyOrderValidated(ctx context.Context, event OrderEvent) {}
func (NopNotifier) NotifyOrderRejected(ctx context.Context, event OrderEvent)  {}
func (NopNotifier) NotifyOrderSettled(ctx context.Context, event OrderEvent)   {}
