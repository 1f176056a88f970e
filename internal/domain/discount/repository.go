package discount

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DiscountRepository defines persistence operations for discount codes.
type DiscountRepository interface {
	Save(ctx context.Context, d *Discount) error
	FindByCode(ctx context.Context, code string) (*Discount, error)

	// FindByCodeAndSchedule returns the code only if it is unrestricted or restricted to scheduleID.
	FindByCodeAndSchedule(ctx context.Context, code string, scheduleID int64) (*Discount, error)
	FindActive(ctx context.Context) ([]*Discount, error)

	// Redeem atomically increments the usage counter, refusing with a conflict error
	// once the cap is reached, and records the usage row in the same transaction.
	Redeem(ctx context.Context, usage *Usage) error

	// ReleaseRedemption undoes Redeem for a payment that was rolled back.
	ReleaseRedemption(ctx context.Context, usage *Usage) error
}

// Usage tracks one redemption of a discount.
type Usage struct {
	ID            uuid.UUID
	DiscountID    uuid.UUID
	UserID        uuid.UUID
	BookingID     uuid.UUID
	DiscountCents int64
	UsedAt        time.Time
}
