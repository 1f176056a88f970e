package loyalty

import (
	"time"

	"github.com/google/uuid"
)

// EntryType is the business reason for a balance change.
type EntryType string

const (
	EntryEarn     EntryType = "EARN"
	EntrySpend    EntryType = "SPEND"
	EntryRefund   EntryType = "REFUND"   // points returned after a wallet payment was rolled back
	EntryReversal EntryType = "REVERSAL" // earned points withdrawn after a payment was rolled back
)

// Rates converts between money and points.
type Rates struct {
	EarnBasisPoints int64 // share of the paid amount earned back, 1000 = 10%
	PointValueCents int64 // what one point pays for
}

// DefaultRates earns 10% back and values one point at one currency unit.
func DefaultRates() Rates {
	return Rates{EarnBasisPoints: 1000, PointValueCents: 100}
}

// PointsEarned is round-half-up(paid * earn rate) expressed in points.
// Non-positive results earn nothing.
func (r Rates) PointsEarned(paidCents int64) int64 {
	if paidCents <= 0 || r.EarnBasisPoints <= 0 || r.PointValueCents <= 0 {
		return 0
	}
	num := paidCents * r.EarnBasisPoints
	den := 10000 * r.PointValueCents
	return (num + den/2) / den
}

// PointsToCover is the number of points needed to pay amountCents, rounded up
// so a wallet payment never under-collects.
func (r Rates) PointsToCover(amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	if r.PointValueCents <= 0 {
		return amountCents
	}
	return (amountCents + r.PointValueCents - 1) / r.PointValueCents
}

// Entry is one row of the points ledger.
type Entry struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Type         EntryType
	Points       int64 // always positive; Type gives the direction
	BalanceAfter int64
	BookingID    *uuid.UUID
	Description  string
	CreatedAt    time.Time
}

// NewEntry builds a ledger entry; the repository fills BalanceAfter.
func NewEntry(userID uuid.UUID, t EntryType, points int64, bookingID *uuid.UUID, description string) *Entry {
	return &Entry{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        t,
		Points:      points,
		BookingID:   bookingID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsCredit reports whether the entry adds to the balance.
func (e *Entry) IsCredit() bool {
	return e.Type == EntryEarn || e.Type == EntryRefund
}
