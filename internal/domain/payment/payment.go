package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/railbook/service-booking/internal/platform/domain"
)

// Status represents the state of a payment record.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

// Payment is the record of one successful charge against a booking.
type Payment struct {
	id                  uuid.UUID
	bookingID           uuid.UUID
	userID              uuid.UUID
	status              Status
	originalAmountCents int64
	discountCents       int64
	amountCents         int64
	discountID          *uuid.UUID
	currency            string
	method              string
	methodFamily        string
	reference           string
	pointsGranted       int64
	refundCents         int64
	refundedAt          *time.Time
	failureReason       string
	version             int64
	createdAt           time.Time
	updatedAt           time.Time
}

// NewPayment records a processed charge. amountCents is what was actually charged.
func NewPayment(bookingID, userID uuid.UUID, originalAmountCents, discountCents int64, discountID *uuid.UUID, currency, method, methodFamily, reference string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		id:                  uuid.New(),
		bookingID:           bookingID,
		userID:              userID,
		status:              StatusSuccess,
		originalAmountCents: originalAmountCents,
		discountCents:       discountCents,
		amountCents:         originalAmountCents - discountCents,
		discountID:          discountID,
		currency:            currency,
		method:              method,
		methodFamily:        methodFamily,
		reference:           reference,
		version:             1,
		createdAt:           now,
		updatedAt:           now,
	}
}

// --- Getters ---

func (p *Payment) ID() uuid.UUID              { return p.id }
func (p *Payment) BookingID() uuid.UUID       { return p.bookingID }
func (p *Payment) UserID() uuid.UUID          { return p.userID }
func (p *Payment) Status() Status             { return p.status }
func (p *Payment) OriginalAmountCents() int64 { return p.originalAmountCents }
func (p *Payment) DiscountCents() int64       { return p.discountCents }
func (p *Payment) AmountCents() int64         { return p.amountCents }
func (p *Payment) DiscountID() *uuid.UUID     { return p.discountID }
func (p *Payment) Currency() string           { return p.currency }
func (p *Payment) Method() string             { return p.method }
func (p *Payment) MethodFamily() string       { return p.methodFamily }
func (p *Payment) Reference() string          { return p.reference }
func (p *Payment) PointsGranted() int64       { return p.pointsGranted }
func (p *Payment) RefundCents() int64         { return p.refundCents }
func (p *Payment) RefundedAt() *time.Time     { return p.refundedAt }
func (p *Payment) FailureReason() string      { return p.failureReason }
func (p *Payment) Version() int64             { return p.version }
func (p *Payment) CreatedAt() time.Time       { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time       { return p.updatedAt }

// --- Behavior / State Transitions ---

// RecordPointsGranted notes the loyalty points earned by this payment.
func (p *Payment) RecordPointsGranted(points int64) {
	p.pointsGranted = points
	p.updatedAt = time.Now().UTC()
}

// Refund transitions a successful payment to refunded for refundCents.
func (p *Payment) Refund(refundCents int64) error {
	if p.status != StatusSuccess {
		return domain.NewInvalidStateError(string(p.status), string(StatusRefunded))
	}
	if refundCents < 0 || refundCents > p.amountCents {
		return domain.NewValidationError("refund must be between zero and the charged amount")
	}
	now := time.Now().UTC()
	p.status = StatusRefunded
	p.refundCents = refundCents
	p.refundedAt = &now
	p.updatedAt = now
	return nil
}

// Fail marks a recorded payment as failed when a later step of the same payment was rolled back.
func (p *Payment) Fail(reason string) error {
	if p.status != StatusSuccess {
		return domain.NewInvalidStateError(string(p.status), string(StatusFailed))
	}
	p.status = StatusFailed
	p.failureReason = reason
	p.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Payment) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// --- Reconstitution (used by repository to rebuild from persistence) ---

// Reconstitute rebuilds a Payment from persisted data.
func Reconstitute(
	id, bookingID, userID uuid.UUID,
	status Status,
	originalAmountCents, discountCents, amountCents int64,
	discountID *uuid.UUID,
	currency, method, methodFamily, reference string,
	pointsGranted, refundCents int64,
	refundedAt *time.Time,
	failureReason string,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:                  id,
		bookingID:           bookingID,
		userID:              userID,
		status:              status,
		originalAmountCents: originalAmountCents,
		discountCents:       discountCents,
		amountCents:         amountCents,
		discountID:          discountID,
		currency:            currency,
		method:              method,
		methodFamily:        methodFamily,
		reference:           reference,
		pointsGranted:       pointsGranted,
		refundCents:         refundCents,
		refundedAt:          refundedAt,
		failureReason:       failureReason,
		version:             version,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}
