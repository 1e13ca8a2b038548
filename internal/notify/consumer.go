package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"jastip/pkg/log"
	"jastip/pkg/queue"
)

// Consumer drains order events from the queue and delivers buyer
// notifications. Delivery currently logs the outgoing message; the email and
// WhatsApp senders plug in behind deliver.
type Consumer struct {
	q queue.Queue
}

// NewConsumer creates a notification consumer
func NewConsumer(q queue.Queue) *Consumer {
	return &Consumer{q: q}
}

// Start subscribes to all order event topics
func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{TopicOrderValidated, TopicOrderRejected, TopicOrderSettled}
	for _, topic := range topics {
		if err := c.q.Subscribe(ctx, topic, c.handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	log.Info("Notification consumer started")
	return nil
}

func (c *Consumer) handle(ctx context.Context, topic string, message []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(message, &event); err != nil {
		log.WithFields(map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		}).Error("Failed to decode notification event")
		return err
	}

	c.deliver(topic, event)
	return nil
}

// deliver composes and sends the buyer-facing message
func (c *Consumer) deliver(topic string, event OrderEvent) {
	fields := map[string]interface{}{
		"topic":      topic,
		"order_id":   event.OrderID,
		"order_code": event.OrderCode,
	}

	switch topic {
	case TopicOrderValidated:
		fields["final_amount"] = event.FinalAmount
		fields["payment_link"] = event.PaymentLink
		log.WithFields(fields).Info("Notify buyer: order accepted, final payment due")
	case TopicOrderRejected:
		fields["reason"] = event.Reason
		log.WithFields(fields).Info("Notify buyer: order rejected")
	case TopicOrderSettled:
		log.WithFields(fields).Info("Notify buyer: order settled")
	default:
		log.WithFields(fields).Warn("Unknown notification topic")
	}
}
