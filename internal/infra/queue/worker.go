package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/richdadretirement/leadrelay/internal/notification"
)

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDeadLetter
)

type Worker struct {
	Channel        *amqp.Channel
	Dispatcher     *notification.Dispatcher
	Policy         notification.RetryPolicy
	AttemptTimeout time.Duration
	Prefetch       int
}

func NewWorker(ch *amqp.Channel, d *notification.Dispatcher, policy notification.RetryPolicy, attemptTimeout time.Duration) *Worker {
	return &Worker{
		Channel:        ch,
		Dispatcher:     d,
		Policy:         policy,
		AttemptTimeout: attemptTimeout,
		Prefetch:       4,
	}
}

// Start consumes queueName until ctx is done or the delivery channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	if err := w.Channel.Qos(w.Prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}

	msgs, err := w.Channel.Consume(
		queueName,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq consume %s: %w", queueName, err)
	}

	log.Printf(" [*] Notification worker waiting on '%s'", queueName)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ [WORKER] Stopping notification worker")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			w.settle(d, w.handle(ctx, d.Body))
		}
	}
}

func (w *Worker) settle(d amqp.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeAck:
		err = d.Ack(false)
	case outcomeRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		log.Printf("❌ [WORKER] Could not settle delivery %d: %v", d.DeliveryTag, err)
	}
}

func (w *Worker) handle(ctx context.Context, body []byte) outcome {
	log.Printf("📥 [WORKER] Notification received")

	var n notification.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Printf("❌ [WORKER] Invalid JSON: %s", err)
		return outcomeDeadLetter
	}

	report := notification.Deliver(ctx, w.Dispatcher, n, w.Policy, w.AttemptTimeout)
	if !report.OK() && ctx.Err() != nil {
		log.Printf("⚠️ [WORKER] Shutting down mid-delivery, requeueing %s", n.ID)
		return outcomeRequeue
	}
	if !report.OK() {
		log.Printf("❌ [WORKER] Notification %s still failing on %v, dead-lettering", n.ID, report.Failed())
		return outcomeDeadLetter
	}

	log.Printf("✅ [WORKER] Notification %s (%s) delivered", n.ID, n.Type)
	return outcomeAck
}
