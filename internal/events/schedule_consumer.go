package events

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/platform/kafka"
)

// ScheduleChangeHandler reacts to timetable changes.
type ScheduleChangeHandler interface {
	HandleScheduleChanged(ctx context.Context, event ScheduleChangedEvent) error
}

// ScheduleEventConsumer listens to schedule events and forwards changes to the handler.
type ScheduleEventConsumer struct {
	consumer *kafka.Consumer
	handler  ScheduleChangeHandler
	logger   *zap.Logger
}

// NewScheduleEventConsumer creates a new consumer for schedule events.
func NewScheduleEventConsumer(
	brokers []string,
	groupID string,
	handler ScheduleChangeHandler,
	logger *zap.Logger,
) *ScheduleEventConsumer {
	return &ScheduleEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicScheduleEvents, logger),
		handler:  handler,
		logger:   logger,
	}
}

// Start begins consuming schedule events. It blocks until the context is cancelled.
func (c *ScheduleEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.HandleMessage)
}

// HandleMessage routes one Kafka message.
func (c *ScheduleEventConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from schedule topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	c.logger.Info("received schedule event",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	if !strings.EqualFold(cloudEvent.Type, ScheduleChanged) {
		c.logger.Debug("ignoring unhandled schedule event type", zap.String("type", cloudEvent.Type))
		return nil
	}

	var event ScheduleChangedEvent
	if err := cloudEvent.ParseData(&event); err != nil {
		c.logger.Error("failed to parse ScheduleChangedEvent data", zap.Error(err))
		return err
	}
	return c.handler.HandleScheduleChanged(ctx, event)
}

// Close closes the underlying Kafka consumer.
func (c *ScheduleEventConsumer) Close() error {
	return c.consumer.Close()
}
