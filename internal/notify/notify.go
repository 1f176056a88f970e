// Package notify delivers user notifications. Delivery is fire-and-forget: callers
// log a failed Notify and carry on.
package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier sends a message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID uuid.UUID, message string) error

func (f NotifierFunc) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	return f(ctx, userID, message)
}

// LogNotifier writes notifications to the log. Used in development.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, message string) error {
	n.logger.Info("notification", zap.String("user_id", userID.String()), zap.String("message", message))
	return nil
}
