package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/railbook/service-booking/internal/domain/cancellation"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// Passenger travels on a booking. Passengers are fixed once the booking exists.
type Passenger struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	SeatNumber string `json:"seat_number"`
	BringPet   bool   `json:"bring_pet"`
	Wheelchair bool   `json:"wheelchair"`
}

// Booking is the aggregate root for a reservation on one schedule.
type Booking struct {
	id          uuid.UUID
	userID      uuid.UUID
	scheduleID  int64
	passengers  []Passenger
	status      Status
	totalCents  int64
	currency    string
	refundCents int64
	confirmedAt *time.Time
	cancelledAt *time.Time
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewBooking creates a PENDING booking priced at seatPriceCents per passenger.
func NewBooking(userID uuid.UUID, scheduleID int64, passengers []Passenger, seatPriceCents int64, currency string) (*Booking, error) {
	if len(passengers) == 0 {
		return nil, domain.NewValidationError("a booking needs at least one passenger")
	}
	if seatPriceCents < 0 {
		return nil, domain.NewValidationError("seat price must not be negative")
	}
	seen := make(map[string]bool, len(passengers))
	for i, p := range passengers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("passenger %d: name is required", i+1))
		}
		if p.Age < 0 || p.Age > 130 {
			return nil, domain.NewValidationError(fmt.Sprintf("passenger %d: invalid age %d", i+1, p.Age))
		}
		seat := strings.ToUpper(strings.TrimSpace(p.SeatNumber))
		if seat == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("passenger %d: seat number is required", i+1))
		}
		if seen[seat] {
			return nil, domain.NewValidationError(fmt.Sprintf("seat %s is assigned twice", seat))
		}
		seen[seat] = true
	}

	now := time.Now().UTC()
	ps := make([]Passenger, len(passengers))
	copy(ps, passengers)

	return &Booking{
		id:         uuid.New(),
		userID:     userID,
		scheduleID: scheduleID,
		passengers: ps,
		status:     StatusPending,
		totalCents: seatPriceCents * int64(len(passengers)),
		currency:   currency,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID           { return b.id }
func (b *Booking) UserID() uuid.UUID       { return b.userID }
func (b *Booking) ScheduleID() int64       { return b.scheduleID }
func (b *Booking) Status() Status          { return b.status }
func (b *Booking) TotalCents() int64       { return b.totalCents }
func (b *Booking) Currency() string        { return b.currency }
func (b *Booking) RefundCents() int64      { return b.refundCents }
func (b *Booking) ConfirmedAt() *time.Time { return b.confirmedAt }
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }
func (b *Booking) Version() int64          { return b.version }
func (b *Booking) CreatedAt() time.Time    { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time    { return b.updatedAt }

// Passengers returns a copy of the passenger list in booking order.
func (b *Booking) Passengers() []Passenger {
	out := make([]Passenger, len(b.passengers))
	copy(out, b.passengers)
	return out
}

// --- Behavior / State Transitions ---

// Confirm moves a PENDING booking to CONFIRMED.
func (b *Booking) Confirm() error {
	next, err := b.status.Next(ActionConfirm)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b.status = next
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// Cancel moves the booking to CANCELLED and returns the refund due in cents.
// A PENDING booking is cancelled unconditionally with nothing to refund. A CONFIRMED
// booking is checked against policy first and left untouched when the check fails.
// paidCents is what was actually charged; the refund is a share of it, never of
// the undiscounted total. A non-positive paidCents falls back to the total.
func (b *Booking) Cancel(hoursUntilDeparture int, policy cancellation.Policy, paidCents int64) (int64, error) {
	next, err := b.status.Next(ActionCancel)
	if err != nil {
		return 0, err
	}

	var refund int64
	if b.status == StatusConfirmed {
		if !policy.CanCancel(hoursUntilDeparture) {
			fields := policy.Fields()
			fields["hours_until_departure"] = hoursUntilDeparture
			return 0, domain.NewPolicyViolationError(policy.ViolationMessage(hoursUntilDeparture), fields)
		}
		base := paidCents
		if base <= 0 || base > b.totalCents {
			base = b.totalCents
		}
		refund = policy.CalculateRefund(base, hoursUntilDeparture)
	}

	now := time.Now().UTC()
	b.status = next
	b.refundCents = refund
	b.cancelledAt = &now
	b.updatedAt = now
	return refund, nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// --- Reconstitution ---

// Reconstitute rebuilds a Booking from persisted data.
func Reconstitute(
	id, userID uuid.UUID,
	scheduleID int64,
	passengers []Passenger,
	status Status,
	totalCents int64,
	currency string,
	refundCents int64,
	confirmedAt, cancelledAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:          id,
		userID:      userID,
		scheduleID:  scheduleID,
		passengers:  passengers,
		status:      status,
		totalCents:  totalCents,
		currency:    currency,
		refundCents: refundCents,
		confirmedAt: confirmedAt,
		cancelledAt: cancelledAt,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}
