package booking

import (
	"context"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for Booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking with its passengers.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindActiveBySchedule retrieves every non-cancelled booking on a schedule.
	FindActiveBySchedule(ctx context.Context, scheduleID int64) ([]*Booking, error)

	// Save persists a new booking and its passengers.
	Save(ctx context.Context, b *Booking) error

	// Update persists a status change with optimistic locking: it succeeds only if the
	// stored version is b.Version()-1, and returns a conflict error otherwise.
	Update(ctx context.Context, b *Booking) error
}

// ScheduleRepository reads schedules owned by the timetable.
type ScheduleRepository interface {
	FindByID(ctx context.Context, id int64) (*Schedule, error)
}
