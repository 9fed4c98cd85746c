package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/richdadretirement/leadrelay/internal/notification"
)

// Publisher is the slice of *amqp.Channel the outbox needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQOutbox is the durable notification.Outbox: notifications survive a
// restart and are delivered by Worker.
type RabbitMQOutbox struct {
	mu sync.Mutex
	ch Publisher
}

func NewRabbitMQOutbox(ch Publisher) *RabbitMQOutbox {
	return &RabbitMQOutbox{ch: ch}
}

func (o *RabbitMQOutbox) Enqueue(ctx context.Context, n notification.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	err = o.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    n.ID,
			Type:         string(n.Type),
			Timestamp:    n.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}
