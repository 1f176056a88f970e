package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/events"
)

// RabbitNotifier publishes notifications to a durable RabbitMQ queue.
type RabbitNotifier struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitNotifier creates a notifier; the connection is opened lazily and
// reopened after the broker drops it.
func NewRabbitNotifier(url, queue string, logger *zap.Logger) *RabbitNotifier {
	if queue == "" {
		queue = events.TopicNotifications
	}
	return &RabbitNotifier{url: url, queue: queue, logger: logger}
}

func (n *RabbitNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	body, err := json.Marshal(events.NotificationRequestedEvent{
		UserID:     userID,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ch, err := n.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    uuid.NewString(),
			Body:         body,
		},
	)
	if err != nil {
		n.reset()
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// channel returns an open channel, dialing and declaring the queue when needed.
// Callers hold n.mu.
func (n *RabbitNotifier) channel() (*amqp.Channel, error) {
	if n.ch != nil && !n.ch.IsClosed() {
		return n.ch, nil
	}
	n.reset()

	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	n.conn, n.ch = conn, ch
	n.logger.Info("connected to rabbitmq", zap.String("queue", n.queue))
	return ch, nil
}

func (n *RabbitNotifier) reset() {
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}

// Close releases the broker connection.
func (n *RabbitNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset()
	return nil
}
