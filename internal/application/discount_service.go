package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	discountDomain "github.com/railbook/service-booking/internal/domain/discount"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// CreateDiscountRequest holds data to create a discount code.
type CreateDiscountRequest struct {
	Code             string `json:"code" binding:"required"`
	DiscountType     string `json:"discount_type" binding:"required"`
	DiscountValue    int64  `json:"discount_value" binding:"required"`
	MinAmountCents   int64  `json:"min_amount_cents"`
	MaxDiscountCents int64  `json:"max_discount_cents"`
	MaxUses          int    `json:"max_uses"`
	ScheduleID       *int64 `json:"schedule_id"`
	ValidFrom        string `json:"valid_from" binding:"required"`
	ValidUntil       string `json:"valid_until" binding:"required"`
}

// ValidateDiscountRequest holds data to check a code before paying.
type ValidateDiscountRequest struct {
	Code        string `json:"code" binding:"required"`
	AmountCents int64  `json:"amount_cents" binding:"required"`
	ScheduleID  *int64 `json:"schedule_id"`
}

// DiscountDTO is the API response representation of a discount code.
type DiscountDTO struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	DiscountType     string    `json:"discount_type"`
	DiscountValue    int64     `json:"discount_value"`
	MinAmountCents   int64     `json:"min_amount_cents"`
	MaxDiscountCents int64     `json:"max_discount_cents"`
	MaxUses          int       `json:"max_uses"`
	CurrentUses      int       `json:"current_uses"`
	ScheduleID       *int64    `json:"schedule_id,omitempty"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidUntil       time.Time `json:"valid_until"`
	CreatedAt        time.Time `json:"created_at"`
}

// DiscountValidationDTO is the result of validating a discount code.
type DiscountValidationDTO struct {
	Valid            bool   `json:"valid"`
	Code             string `json:"code"`
	DiscountCents    int64  `json:"discount_cents"`
	FinalAmountCents int64  `json:"final_amount_cents"`
	Message          string `json:"message,omitempty"`
}

// DiscountService handles discount code use cases.
type DiscountService struct {
	repo   discountDomain.DiscountRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewDiscountService creates a new DiscountService. now may be nil.
func NewDiscountService(repo discountDomain.DiscountRepository, now func() time.Time, logger *zap.Logger) *DiscountService {
	if now == nil {
		now = time.Now
	}
	return &DiscountService{repo: repo, now: now, logger: logger}
}

// FindApplicable resolves code to a usable discount. A missing, expired, exhausted
// or schedule-restricted code yields nil without an error; only storage failures
// are returned. Restrictions are checked only when scheduleID is given.
func (s *DiscountService) FindApplicable(ctx context.Context, code string, scheduleID *int64) (*discountDomain.Discount, error) {
	code = discountDomain.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}

	var (
		d   *discountDomain.Discount
		err error
	)
	if scheduleID != nil {
		d, err = s.repo.FindByCodeAndSchedule(ctx, code, *scheduleID)
	} else {
		d, err = s.repo.FindByCode(ctx, code)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if !d.IsValidAt(s.now()) {
		return nil, nil
	}
	if scheduleID != nil && !d.AppliesToSchedule(*scheduleID) {
		return nil, nil
	}
	return d, nil
}

// Apply returns the discount for originalCents; a nil discount gives 0.
func (s *DiscountService) Apply(d *discountDomain.Discount, originalCents int64) int64 {
	if d == nil {
		return 0
	}
	return d.Apply(originalCents)
}

// Redeem counts one use of a discount. Call it only after the payment succeeded.
func (s *DiscountService) Redeem(ctx context.Context, usage *discountDomain.Usage) error {
	if err := s.repo.Redeem(ctx, usage); err != nil {
		return err
	}
	s.logger.Info("discount redeemed",
		zap.String("discount_id", usage.DiscountID.String()),
		zap.String("booking_id", usage.BookingID.String()),
		zap.Int64("discount_cents", usage.DiscountCents),
	)
	return nil
}

// Release undoes Redeem for a payment that was rolled back.
func (s *DiscountService) Release(ctx context.Context, usage *discountDomain.Usage) error {
	if err := s.repo.ReleaseRedemption(ctx, usage); err != nil {
		return err
	}
	s.logger.Info("discount redemption released",
		zap.String("discount_id", usage.DiscountID.String()),
		zap.String("booking_id", usage.BookingID.String()),
	)
	return nil
}

// CreateDiscount creates a new discount code (staff only).
func (s *DiscountService) CreateDiscount(ctx context.Context, session auth.Session, req CreateDiscountRequest) (*DiscountDTO, error) {
	if !session.Can(auth.CapManageDiscounts) {
		return nil, domain.NewForbiddenError("only staff can create discount codes")
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		return nil, domain.NewValidationError("invalid valid_from format (use RFC3339)")
	}
	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		return nil, domain.NewValidationError("invalid valid_until format (use RFC3339)")
	}

	d, err := discountDomain.NewDiscount(
		req.Code,
		discountDomain.Type(req.DiscountType),
		req.DiscountValue,
		req.MinAmountCents,
		req.MaxDiscountCents,
		req.MaxUses,
		req.ScheduleID,
		validFrom,
		validUntil,
		session.UserID,
	)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	if err := s.repo.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save discount: %w", err)
	}

	s.logger.Info("discount code created",
		zap.String("code", d.Code()),
		zap.String("created_by", session.UserID.String()),
	)
	return toDiscountDTO(d), nil
}

// ValidateDiscount checks if a code is usable and calculates the discount.
func (s *DiscountService) ValidateDiscount(ctx context.Context, req ValidateDiscountRequest) (*DiscountValidationDTO, error) {
	code := discountDomain.NormalizeCode(req.Code)
	d, err := s.FindApplicable(ctx, code, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return &DiscountValidationDTO{
			Valid:            false,
			Code:             code,
			FinalAmountCents: req.AmountCents,
			Message:          "discount code is invalid, expired or not valid for this trip",
		}, nil
	}

	amount := s.Apply(d, req.AmountCents)
	if amount == 0 {
		return &DiscountValidationDTO{
			Valid:            false,
			Code:             d.Code(),
			FinalAmountCents: req.AmountCents,
			Message:          fmt.Sprintf("minimum order amount is %d cents", d.MinAmountCents()),
		}, nil
	}

	return &DiscountValidationDTO{
		Valid:            true,
		Code:             d.Code(),
		DiscountCents:    amount,
		FinalAmountCents: req.AmountCents - amount,
	}, nil
}

// GetActiveDiscounts returns all currently active discount codes.
func (s *DiscountService) GetActiveDiscounts(ctx context.Context) ([]*DiscountDTO, error) {
	discounts, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	dtos := make([]*DiscountDTO, len(discounts))
	for i, d := range discounts {
		dtos[i] = toDiscountDTO(d)
	}
	return dtos, nil
}

func toDiscountDTO(d *discountDomain.Discount) *DiscountDTO {
	return &DiscountDTO{
		ID:               d.ID(),
		Code:             d.Code(),
		DiscountType:     string(d.Type()),
		DiscountValue:    d.Value(),
		MinAmountCents:   d.MinAmountCents(),
		MaxDiscountCents: d.MaxDiscountCents(),
		MaxUses:          d.MaxUses(),
		CurrentUses:      d.CurrentUses(),
		ScheduleID:       d.ScheduleID(),
		ValidFrom:        d.ValidFrom(),
		ValidUntil:       d.ValidUntil(),
		CreatedAt:        d.CreatedAt(),
	}
}
