package saga

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/adapter"
	"github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/domain/discount"
	"github.com/railbook/service-booking/internal/domain/payment"
)

// DiscountRedeemer counts and un-counts discount usage.
type DiscountRedeemer interface {
	Redeem(ctx context.Context, usage *discount.Usage) error
	Release(ctx context.Context, usage *discount.Usage) error
}

// PointsGranter grants loyalty points for a payment and takes them back.
type PointsGranter interface {
	Grant(ctx context.Context, userID uuid.UUID, paidCents int64, bookingID uuid.UUID) (int64, error)
	Revoke(ctx context.Context, userID uuid.UUID, points int64, bookingID uuid.UUID) error
}

// Charge describes a payment the adapter has already processed.
type Charge struct {
	Booking       *booking.Booking
	Adapter       adapter.PaymentAdapter
	Reference     string
	Details       map[string]string
	Discount      *discount.Discount // nil when no discount applied
	DiscountCents int64
	GrantPoints   bool
}

// PaymentSagaService records the effects of a processed payment.
type PaymentSagaService struct {
	discounts DiscountRedeemer
	payments  payment.PaymentRepository
	bookings  booking.BookingRepository
	loyalty   PointsGranter
	logger    *zap.Logger
}

// NewPaymentSagaService creates a new PaymentSagaService.
func NewPaymentSagaService(
	discounts DiscountRedeemer,
	payments payment.PaymentRepository,
	bookings booking.BookingRepository,
	loyalty PointsGranter,
	logger *zap.Logger,
) *PaymentSagaService {
	return &PaymentSagaService{
		discounts: discounts,
		payments:  payments,
		bookings:  bookings,
		loyalty:   loyalty,
		logger:    logger,
	}
}

// CompletePayment redeems the discount, grants loyalty points, stores the payment and
// confirms the booking, in that order. If any step fails the earlier ones are undone
// and the charge itself is returned through the adapter when it supports refunds.
func (s *PaymentSagaService) CompletePayment(ctx context.Context, c Charge) (*payment.Payment, error) {
	b := c.Booking
	var discountID *uuid.UUID
	if c.Discount != nil {
		id := c.Discount.ID()
		discountID = &id
	}
	p := payment.NewPayment(b.ID(), b.UserID(), b.TotalCents(), c.DiscountCents, discountID,
		b.Currency(), c.Adapter.MethodName(), string(c.Adapter.Family()), c.Reference)

	sg := New("complete_payment", s.logger)

	// Step 1: the charge already happened; compensation returns it
	sg.AddStep(Step{
		Name:    "charge",
		Execute: func(context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			refunder, ok := c.Adapter.(adapter.Refunder)
			if !ok {
				s.logger.Warn("charge cannot be reversed automatically",
					zap.String("booking_id", b.ID().String()),
					zap.String("method", c.Adapter.MethodName()),
					zap.String("reference", c.Reference),
				)
				return nil
			}
			return refunder.RefundPayment(ctx, c.Reference, p.AmountCents(), c.Details)
		},
	})

	// Step 2: count the discount use
	if c.Discount != nil {
		usage := &discount.Usage{
			ID:            uuid.New(),
			DiscountID:    c.Discount.ID(),
			UserID:        b.UserID(),
			BookingID:     b.ID(),
			DiscountCents: c.DiscountCents,
			UsedAt:        p.CreatedAt(),
		}
		sg.AddStep(Step{
			Name:       "redeem_discount",
			Execute:    func(ctx context.Context) error { return s.discounts.Redeem(ctx, usage) },
			Compensate: func(ctx context.Context) error { return s.discounts.Release(ctx, usage) },
		})
	}

	// Step 3: grant loyalty points on the charged amount
	if c.GrantPoints {
		sg.AddStep(Step{
			Name: "grant_loyalty_points",
			Execute: func(ctx context.Context) error {
				points, err := s.loyalty.Grant(ctx, b.UserID(), p.AmountCents(), b.ID())
				if err != nil {
					return err
				}
				p.RecordPointsGranted(points)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				if p.PointsGranted() == 0 {
					return nil
				}
				return s.loyalty.Revoke(ctx, b.UserID(), p.PointsGranted(), b.ID())
			},
		})
	}

	// Step 4: store the payment record
	sg.AddStep(Step{
		Name:    "save_payment",
		Execute: func(ctx context.Context) error { return s.payments.Save(ctx, p) },
		Compensate: func(ctx context.Context) error {
			if err := p.Fail("rolled back: booking confirmation failed"); err != nil {
				return err
			}
			p.IncrementVersion()
			return s.payments.Update(ctx, p)
		},
	})

	// Step 5: confirm the booking; conditional on the stored version
	sg.AddStep(Step{
		Name: "confirm_booking",
		Execute: func(ctx context.Context) error {
			if err := b.Confirm(); err != nil {
				return err
			}
			b.IncrementVersion()
			return s.bookings.Update(ctx, b)
		},
	})

	if err := sg.Execute(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
