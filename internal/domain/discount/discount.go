package discount

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type represents how a discount value is interpreted.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Discount is the aggregate root for code-activated price reductions.
type Discount struct {
	id               uuid.UUID
	code             string
	discountType     Type
	discountValue    int64 // percentage (1-100) or fixed amount in cents
	minAmountCents   int64
	maxDiscountCents int64
	maxUses          int // 0 means unlimited
	currentUses      int
	scheduleID       *int64
	validFrom        time.Time
	validUntil       time.Time
	createdBy        uuid.UUID
	createdAt        time.Time
	updatedAt        time.Time
}

// NormalizeCode upper-cases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewDiscount creates a discount code. scheduleID restricts it to one departure when non-nil.
func NewDiscount(code string, discountType Type, discountValue, minAmountCents, maxDiscountCents int64, maxUses int, scheduleID *int64, validFrom, validUntil time.Time, createdBy uuid.UUID) (*Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("discount code is required")
	}
	if discountType != TypePercentage && discountType != TypeFixed {
		return nil, fmt.Errorf("invalid discount type: %s", discountType)
	}
	if discountValue <= 0 {
		return nil, fmt.Errorf("discount value must be positive")
	}
	if discountType == TypePercentage && discountValue > 100 {
		return nil, fmt.Errorf("percentage discount cannot exceed 100")
	}
	if minAmountCents < 0 || maxDiscountCents < 0 || maxUses < 0 {
		return nil, fmt.Errorf("limits must not be negative")
	}
	if !validUntil.After(validFrom) {
		return nil, fmt.Errorf("valid_until must be after valid_from")
	}

	now := time.Now().UTC()
	return &Discount{
		id:               uuid.New(),
		code:             code,
		discountType:     discountType,
		discountValue:    discountValue,
		minAmountCents:   minAmountCents,
		maxDiscountCents: maxDiscountCents,
		maxUses:          maxUses,
		scheduleID:       scheduleID,
		validFrom:        validFrom,
		validUntil:       validUntil,
		createdBy:        createdBy,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// Reconstruct rebuilds a Discount from persistence.
func Reconstruct(id uuid.UUID, code string, discountType Type, discountValue, minAmountCents, maxDiscountCents int64, maxUses, currentUses int, scheduleID *int64, validFrom, validUntil time.Time, createdBy uuid.UUID, createdAt, updatedAt time.Time) *Discount {
	return &Discount{
		id: id, code: code, discountType: discountType, discountValue: discountValue,
		minAmountCents: minAmountCents, maxDiscountCents: maxDiscountCents,
		maxUses: maxUses, currentUses: currentUses, scheduleID: scheduleID,
		validFrom: validFrom, validUntil: validUntil,
		createdBy: createdBy, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// IsValidAt reports whether the code is inside its window and below its usage cap.
func (d *Discount) IsValidAt(now time.Time) bool {
	return !now.Before(d.validFrom) && now.Before(d.validUntil) && !d.IsExhausted()
}

// IsExhausted reports whether the usage cap has been reached.
func (d *Discount) IsExhausted() bool {
	return d.maxUses > 0 && d.currentUses >= d.maxUses
}

// AppliesToSchedule reports whether the code may be used on scheduleID.
// Unrestricted codes apply everywhere.
func (d *Discount) AppliesToSchedule(scheduleID int64) bool {
	return d.scheduleID == nil || *d.scheduleID == scheduleID
}

// Apply returns the discount for originalCents, clamped to [0, originalCents].
// Amounts below the minimum get no discount.
func (d *Discount) Apply(originalCents int64) int64 {
	if originalCents <= 0 || originalCents < d.minAmountCents {
		return 0
	}

	var discount int64
	switch d.discountType {
	case TypePercentage:
		discount = (originalCents*d.discountValue + 50) / 100
	case TypeFixed:
		discount = d.discountValue
	}

	if d.maxDiscountCents > 0 && discount > d.maxDiscountCents {
		discount = d.maxDiscountCents
	}
	if discount > originalCents {
		discount = originalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// IncrementUses records one redemption on the in-memory aggregate.
func (d *Discount) IncrementUses() {
	d.currentUses++
	d.updatedAt = time.Now().UTC()
}

// Getters.
func (d *Discount) ID() uuid.UUID           { return d.id }
func (d *Discount) Code() string            { return d.code }
func (d *Discount) Type() Type              { return d.discountType }
func (d *Discount) Value() int64            { return d.discountValue }
func (d *Discount) MinAmountCents() int64   { return d.minAmountCents }
func (d *Discount) MaxDiscountCents() int64 { return d.maxDiscountCents }
func (d *Discount) MaxUses() int            { return d.maxUses }
func (d *Discount) CurrentUses() int        { return d.currentUses }
func (d *Discount) ScheduleID() *int64      { return d.scheduleID }
func (d *Discount) ValidFrom() time.Time    { return d.validFrom }
func (d *Discount) ValidUntil() time.Time   { return d.validUntil }
func (d *Discount) CreatedBy() uuid.UUID    { return d.createdBy }
func (d *Discount) CreatedAt() time.Time    { return d.createdAt }
func (d *Discount) UpdatedAt() time.Time    { return d.updatedAt }
