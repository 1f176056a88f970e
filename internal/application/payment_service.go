package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/domain/payment"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// PaymentDTO is the API response DTO for payment data.
type PaymentDTO struct {
	ID                  uuid.UUID  `json:"id"`
	BookingID           uuid.UUID  `json:"booking_id"`
	UserID              uuid.UUID  `json:"user_id"`
	Status              string     `json:"status"`
	OriginalAmountCents int64      `json:"original_amount_cents"`
	DiscountCents       int64      `json:"discount_cents"`
	AmountCents         int64      `json:"amount_cents"`
	DiscountID          *uuid.UUID `json:"discount_id,omitempty"`
	Currency            string     `json:"currency"`
	Method              string     `json:"method"`
	MethodFamily        string     `json:"method_family"`
	Reference           string     `json:"reference,omitempty"`
	PointsGranted       int64      `json:"points_granted"`
	RefundCents         int64      `json:"refund_cents"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	FailureReason       string     `json:"failure_reason,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PaymentService answers payment queries.
type PaymentService struct {
	repo   payment.PaymentRepository
	logger *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(repo payment.PaymentRepository, logger *zap.Logger) *PaymentService {
	return &PaymentService{repo: repo, logger: logger}
}

// GetPayment retrieves a payment by its ID.
func (s *PaymentService) GetPayment(ctx context.Context, session auth.Session, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := authorizePayment(session, p); err != nil {
		return nil, err
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// GetPaymentByBooking retrieves a payment by its associated booking ID.
func (s *PaymentService) GetPaymentByBooking(ctx context.Context, session auth.Session, bookingID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizePayment(session, p); err != nil {
		return nil, err
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// --- Admin methods ---

// PaymentStatsDTO holds payment statistics for the admin dashboard.
type PaymentStatsDTO struct {
	TotalRevenueCents int64            `json:"total_revenue_cents"`
	TotalPayments     int64            `json:"total_payments"`
	ByStatus          map[string]int64 `json:"by_status"`
}

// ListAllPayments returns a paginated list of all payments (admin).
func (s *PaymentService) ListAllPayments(ctx context.Context, page, limit int) ([]PaymentDTO, int64, error) {
	payments, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, total, nil
}

// GetPaymentStats returns aggregate payment statistics (admin).
func (s *PaymentService) GetPaymentStats(ctx context.Context) (*PaymentStatsDTO, error) {
	revenue, counts, err := s.repo.GetRevenueStats(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &PaymentStatsDTO{
		TotalRevenueCents: revenue,
		TotalPayments:     total,
		ByStatus:          counts,
	}, nil
}

func authorizePayment(session auth.Session, p *payment.Payment) error {
	if !session.Authenticated {
		return domain.NewUnauthorizedError("sign in to view payments")
	}
	if session.Owns(p.UserID()) || session.Can(auth.CapViewAllPayments) {
		return nil
	}
	return domain.NewForbiddenError("payment belongs to another user")
}

// toPaymentDTO maps a domain Payment to a PaymentDTO.
func toPaymentDTO(p *payment.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                  p.ID(),
		BookingID:           p.BookingID(),
		UserID:              p.UserID(),
		Status:              string(p.Status()),
		OriginalAmountCents: p.OriginalAmountCents(),
		DiscountCents:       p.DiscountCents(),
		AmountCents:         p.AmountCents(),
		DiscountID:          p.DiscountID(),
		Currency:            p.Currency(),
		Method:              p.Method(),
		MethodFamily:        p.MethodFamily(),
		Reference:           p.Reference(),
		PointsGranted:       p.PointsGranted(),
		RefundCents:         p.RefundCents(),
		RefundedAt:          p.RefundedAt(),
		FailureReason:       p.FailureReason(),
		Version:             p.Version(),
		CreatedAt:           p.CreatedAt(),
		UpdatedAt:           p.UpdatedAt(),
	}
}
