package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/railbook/service-booking/internal/events"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, subject string, data any) error
}

// KafkaNotifier hands notifications to the notification service over Kafka.
type KafkaNotifier struct {
	publisher EventPublisher
}

func NewKafkaNotifier(publisher EventPublisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher}
}

func (n *KafkaNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	return n.publisher.Publish(ctx, events.TopicNotifications, events.NotificationRequested, userID.String(),
		events.NotificationRequestedEvent{
			UserID:     userID,
			Message:    message,
			OccurredAt: time.Now().UTC(),
		})
}
