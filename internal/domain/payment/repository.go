package payment

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository defines the persistence contract for Payment records.
type PaymentRepository interface {
	// FindByID retrieves a payment by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByBookingID retrieves the successful (or refunded) payment of a booking.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error)

	// ListAll retrieves all payments with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)

	// GetRevenueStats returns collected revenue net of refunds and counts by status (admin).
	GetRevenueStats(ctx context.Context) (revenueCents int64, countByStatus map[string]int64, err error)

	// Save persists a new payment record.
	Save(ctx context.Context, p *Payment) error

	// Update persists changes to an existing payment with optimistic locking.
	Update(ctx context.Context, p *Payment) error
}
