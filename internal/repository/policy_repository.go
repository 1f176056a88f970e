package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/railbook/service-booking/internal/domain/cancellation"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// CancellationPolicyModel stores policy versions; exactly one row is active.
type CancellationPolicyModel struct {
	ID                      uint                      `gorm:"primaryKey"`
	HoursBeforeDeparture    int                       `gorm:"not null"`
	MinHoursBeforeDeparture int                       `gorm:"not null;default:0"`
	RefundTiers             []cancellation.RefundTier `gorm:"type:jsonb;serializer:json;not null"`
	Active                  bool                      `gorm:"not null;default:false;index"`
	CreatedAt               time.Time                 `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName sets the table name.
func (CancellationPolicyModel) TableName() string { return "cancellation_policies" }

// GormPolicyRepository implements cancellation.PolicyRepository using GORM.
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository.
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// GetActive returns the active policy, or a not-found error when none is stored.
func (r *GormPolicyRepository) GetActive(ctx context.Context) (cancellation.Policy, error) {
	var model CancellationPolicyModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cancellation.Policy{}, domain.NewNotFoundError("cancellation policy", "active")
		}
		return cancellation.Policy{}, domain.NewStorageError("find cancellation policy", err)
	}

	p, err := cancellation.NewPolicy(model.HoursBeforeDeparture, model.MinHoursBeforeDeparture, model.RefundTiers)
	if err != nil {
		return cancellation.Policy{}, domain.NewStorageError("decode cancellation policy", err)
	}
	return p, nil
}

// ReplaceActive deactivates the current policy and stores p as active. Old rows are
// kept as history.
func (r *GormPolicyRepository) ReplaceActive(ctx context.Context, p cancellation.Policy) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&CancellationPolicyModel{}).
			Where("active = ?", true).
			Update("active", false).Error; err != nil {
			return domain.NewStorageError("deactivate cancellation policy", err)
		}
		model := CancellationPolicyModel{
			HoursBeforeDeparture:    p.HoursBeforeDeparture(),
			MinHoursBeforeDeparture: p.MinHoursBeforeDeparture(),
			RefundTiers:             p.Tiers(),
			Active:                  true,
			CreatedAt:               time.Now().UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return domain.NewStorageError("save cancellation policy", err)
		}
		return nil
	})
}
