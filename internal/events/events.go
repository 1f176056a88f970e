// Package events holds the CloudEvent contracts this service publishes and consumes,
// and the Kafka plumbing around them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Source is the CloudEvent source of everything this service publishes.
const Source = "service-booking"

// Topics.
const (
	TopicBookingEvents  = "booking.events"
	TopicPaymentEvents  = "payment.events"
	TopicScheduleEvents = "schedule.events"
	TopicNotifications  = "notification.requests"
)

// Event types.
const (
	BookingConfirmed      = "booking.confirmed"
	BookingCancelled      = "booking.cancelled"
	PaymentCompleted      = "payment.completed"
	PaymentFailed         = "payment.failed"
	ScheduleChanged       = "schedule.changed"
	NotificationRequested = "notification.requested"
)

// BookingConfirmedEvent is published once a payment confirmed a booking.
type BookingConfirmedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      uuid.UUID `json:"user_id"`
	ScheduleID  int64     `json:"schedule_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BookingCancelledEvent is published when a booking is cancelled.
type BookingCancelledEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	UserID        uuid.UUID `json:"user_id"`
	ScheduleID    int64     `json:"schedule_id"`
	PreviousState string    `json:"previous_state"`
	RefundCents   int64     `json:"refund_cents"`
	RefundPercent int       `json:"refund_percent"`
	CancelledBy   uuid.UUID `json:"cancelled_by"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentCompletedEvent is published after every effect of a successful payment committed.
type PaymentCompletedEvent struct {
	PaymentID     uuid.UUID  `json:"payment_id"`
	BookingID     uuid.UUID  `json:"booking_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Method        string     `json:"method"`
	MethodFamily  string     `json:"method_family"`
	AmountCents   int64      `json:"amount_cents"`
	DiscountCents int64      `json:"discount_cents"`
	DiscountID    *uuid.UUID `json:"discount_id,omitempty"`
	PointsGranted int64      `json:"points_granted"`
	Currency      string     `json:"currency"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// PaymentFailedEvent audits a payment attempt that did not go through. Failed
// attempts are not stored as payment records.
type PaymentFailedEvent struct {
	BookingID    uuid.UUID `json:"booking_id"`
	UserID       uuid.UUID `json:"user_id"`
	MethodFamily string    `json:"method_family"`
	AmountCents  int64     `json:"amount_cents"`
	Code         string    `json:"code"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ScheduleChangedEvent is consumed from the timetable.
type ScheduleChangedEvent struct {
	ScheduleID    int64     `json:"schedule_id"`
	DepartureDate string    `json:"departure_date,omitempty"`
	DepartureTime string    `json:"departure_time,omitempty"`
	ArrivalTime   string    `json:"arrival_time,omitempty"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NotificationRequestedEvent carries one user notification.
type NotificationRequestedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
