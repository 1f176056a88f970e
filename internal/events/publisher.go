package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/platform/kafka"
)

// Publisher wraps payloads in CloudEvents and writes them to Kafka.
type Publisher struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

func NewPublisher(producer *kafka.Producer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

// Publish sends data as eventType on topic. subject keys the message, so events
// about one booking stay in order.
func (p *Publisher) Publish(ctx context.Context, topic, eventType, subject string, data any) error {
	ce, err := kafka.NewCloudEvent(Source, eventType, data)
	if err != nil {
		return fmt.Errorf("failed to create cloud event: %w", err)
	}
	ce.Subject = subject

	if err := p.producer.PublishEvent(ctx, topic, ce); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("type", eventType),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return err
	}
	return nil
}
