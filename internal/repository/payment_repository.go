package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	paymentDomain "github.com/railbook/service-booking/internal/domain/payment"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// PaymentModel is the GORM persistence model for the payments table.
// At most one non-failed payment exists per booking.
type PaymentModel struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID           uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_payments_live_booking,where:status <> 'FAILED'"`
	UserID              uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status              string     `gorm:"type:varchar(20);not null;default:'SUCCESS'"`
	OriginalAmountCents int64      `gorm:"not null"`
	DiscountCents       int64      `gorm:"not null;default:0"`
	AmountCents         int64      `gorm:"not null"`
	DiscountID          *uuid.UUID `gorm:"type:uuid"`
	Currency            string     `gorm:"type:varchar(3);not null;default:'USD'"`
	Method              string     `gorm:"type:varchar(50);not null"`
	MethodFamily        string     `gorm:"type:varchar(30);not null"`
	Reference           string     `gorm:"type:varchar(255)"`
	PointsGranted       int64      `gorm:"not null;default:0"`
	RefundCents         int64      `gorm:"not null;default:0"`
	RefundedAt          *time.Time `gorm:"type:timestamptz"`
	FailureReason       string     `gorm:"type:text"`
	Version             int64      `gorm:"not null;default:1"`
	CreatedAt           time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt           time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PaymentModel) TableName() string {
	return "payments"
}

// PaymentRepositoryImpl is the GORM-based implementation of PaymentRepository.
type PaymentRepositoryImpl struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new GORM-based payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{db: db}
}

// FindByID retrieves a payment by its unique ID.
func (r *PaymentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment", id.String())
		}
		return nil, domain.NewStorageError("find payment", err)
	}
	return toDomain(&model), nil
}

// FindByBookingID retrieves the live (successful or refunded) payment of a booking.
func (r *PaymentRepositoryImpl) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status <> ?", bookingID, string(paymentDomain.StatusFailed)).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment for booking", bookingID.String())
		}
		return nil, domain.NewStorageError("find payment by booking", err)
	}
	return toDomain(&model), nil
}

// Save persists a new payment record.
func (r *PaymentRepositoryImpl) Save(ctx context.Context, payment *paymentDomain.Payment) error {
	model := toModel(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("booking already has a payment")
		}
		return domain.NewStorageError("save payment", err)
	}
	return nil
}

// Update persists changes to an existing payment with optimistic locking.
func (r *PaymentRepositoryImpl) Update(ctx context.Context, payment *paymentDomain.Payment) error {
	model := toModel(payment)
	previousVersion := payment.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("status", "points_granted", "refund_cents", "refunded_at", "failure_reason", "version", "updated_at").
		Updates(model)

	if result.Error != nil {
		return domain.NewStorageError("update payment", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction")
	}

	return nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *PaymentRepositoryImpl) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).Count(&total).Error; err != nil {
		return nil, 0, domain.NewStorageError("count payments", err)
	}

	var models []PaymentModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, domain.NewStorageError("list payments", err)
	}

	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		payments[i] = toDomain(&models[i])
	}
	return payments, total, nil
}

// GetRevenueStats returns collected revenue net of refunds and counts by status (admin).
func (r *PaymentRepositoryImpl) GetRevenueStats(ctx context.Context) (int64, map[string]int64, error) {
	var totalRevenue int64
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("status <> ?", string(paymentDomain.StatusFailed)).
		Select("COALESCE(SUM(amount_cents - refund_cents), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return 0, nil, domain.NewStorageError("sum revenue", err)
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return 0, nil, domain.NewStorageError("count payments by status", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return totalRevenue, counts, nil
}

// toDomain maps a PaymentModel to the domain Payment.
func toDomain(model *PaymentModel) *paymentDomain.Payment {
	return paymentDomain.Reconstitute(
		model.ID,
		model.BookingID,
		model.UserID,
		paymentDomain.Status(model.Status),
		model.OriginalAmountCents,
		model.DiscountCents,
		model.AmountCents,
		model.DiscountID,
		model.Currency,
		model.Method,
		model.MethodFamily,
		model.Reference,
		model.PointsGranted,
		model.RefundCents,
		model.RefundedAt,
		model.FailureReason,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// toModel maps a domain Payment to a PaymentModel for persistence.
func toModel(p *paymentDomain.Payment) *PaymentModel {
	return &PaymentModel{
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
