package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	discountDomain "github.com/railbook/service-booking/internal/domain/discount"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// DiscountModel is the GORM model for the discounts table.
type DiscountModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code             string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	DiscountType     string    `gorm:"type:varchar(20);not null"`
	DiscountValue    int64     `gorm:"not null"`
	MinAmountCents   int64     `gorm:"default:0"`
	MaxDiscountCents int64     `gorm:"default:0"`
	MaxUses          int       `gorm:"default:0"`
	CurrentUses      int       `gorm:"default:0"`
	ScheduleID       *int64    `gorm:"index"`
	ValidFrom        time.Time `gorm:"not null"`
	ValidUntil       time.Time `gorm:"not null"`
	CreatedBy        uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (DiscountModel) TableName() string { return "discounts" }

// DiscountUsageModel is the GORM model for the discount_usages table.
type DiscountUsageModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	DiscountID    uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	BookingID     uuid.UUID `gorm:"type:uuid;not null"`
	DiscountCents int64     `gorm:"not null"`
	UsedAt        time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (DiscountUsageModel) TableName() string { return "discount_usages" }

// GormDiscountRepository implements DiscountRepository using GORM.
type GormDiscountRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormDiscountRepository creates a new GormDiscountRepository.
func NewGormDiscountRepository(db *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: db, now: time.Now}
}

// Save persists a new discount code.
func (r *GormDiscountRepository) Save(ctx context.Context, d *discountDomain.Discount) error {
	model := toDiscountModel(d)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("discount code already exists")
		}
		return domain.NewStorageError("save discount", err)
	}
	return nil
}

// FindByCode returns a discount by its normalized code.
func (r *GormDiscountRepository) FindByCode(ctx context.Context, code string) (*discountDomain.Discount, error) {
	return r.findOne(r.db.WithContext(ctx).Where("code = ?", discountDomain.NormalizeCode(code)), code)
}

// FindByCodeAndSchedule returns the code only if it is unrestricted or restricted to scheduleID.
func (r *GormDiscountRepository) FindByCodeAndSchedule(ctx context.Context, code string, scheduleID int64) (*discountDomain.Discount, error) {
	q := r.db.WithContext(ctx).
		Where("code = ?", discountDomain.NormalizeCode(code)).
		Where("schedule_id IS NULL OR schedule_id = ?", scheduleID)
	return r.findOne(q, code)
}

func (r *GormDiscountRepository) findOne(q *gorm.DB, code string) (*discountDomain.Discount, error) {
	var model DiscountModel
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("discount", code)
		}
		return nil, domain.NewStorageError("find discount", err)
	}
	return toDiscountDomain(&model), nil
}

// FindActive returns all currently active discount codes.
func (r *GormDiscountRepository) FindActive(ctx context.Context) ([]*discountDomain.Discount, error) {
	var models []DiscountModel
	now := r.now().UTC()
	if err := r.db.WithContext(ctx).
		Where("valid_from <= ? AND valid_until > ?", now, now).
		Where("max_uses = 0 OR current_uses < max_uses").
		Order("valid_until ASC").
		Find(&models).Error; err != nil {
		return nil, domain.NewStorageError("find active discounts", err)
	}

	discounts := make([]*discountDomain.Discount, len(models))
	for i := range models {
		discounts[i] = toDiscountDomain(&models[i])
	}
	return discounts, nil
}

// Redeem increments the usage counter only while it is below the cap and records
// the usage row in the same transaction.
func (r *GormDiscountRepository) Redeem(ctx context.Context, usage *discountDomain.Usage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&DiscountModel{}).
			Where("id = ? AND (max_uses = 0 OR current_uses < max_uses)", usage.DiscountID).
			Updates(map[string]any{
				"current_uses": gorm.Expr("current_uses + 1"),
				"updated_at":   r.now().UTC(),
			})
		if result.Error != nil {
			return domain.NewStorageError("redeem discount", result.Error)
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&DiscountModel{}).Where("id = ?", usage.DiscountID).Count(&count).Error; err != nil {
				return domain.NewStorageError("redeem discount", err)
			}
			if count == 0 {
				return domain.NewNotFoundError("discount", usage.DiscountID.String())
			}
			return domain.NewConflictError("discount usage limit reached")
		}

		model := DiscountUsageModel{
			ID:            usage.ID,
			DiscountID:    usage.DiscountID,
			UserID:        usage.UserID,
			BookingID:     usage.BookingID,
			DiscountCents: usage.DiscountCents,
			UsedAt:        usage.UsedAt,
		}
		if err := tx.Create(&model).Error; err != nil {
			return domain.NewStorageError("record discount usage", err)
		}
		return nil
	})
}

// ReleaseRedemption deletes the usage row and gives the use back. Releasing a
// usage that was never recorded is a no-op.
func (r *GormDiscountRepository) ReleaseRedemption(ctx context.Context, usage *discountDomain.Usage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", usage.ID).Delete(&DiscountUsageModel{})
		if result.Error != nil {
			return domain.NewStorageError("release discount usage", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&DiscountModel{}).
			Where("id = ? AND current_uses > 0", usage.DiscountID).
			Updates(map[string]any{
				"current_uses": gorm.Expr("current_uses - 1"),
				"updated_at":   r.now().UTC(),
			}).Error; err != nil {
			return domain.NewStorageError("release discount usage", err)
		}
		return nil
	})
}

func toDiscountModel(d *discountDomain.Discount) DiscountModel {
	return DiscountModel{
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
		CreatedBy:        d.CreatedBy(),
		CreatedAt:        d.CreatedAt(),
		UpdatedAt:        d.UpdatedAt(),
	}
}

func toDiscountDomain(m *DiscountModel) *discountDomain.Discount {
	return discountDomain.Reconstruct(
		m.ID, m.Code, discountDomain.Type(m.DiscountType),
		m.DiscountValue, m.MinAmountCents, m.MaxDiscountCents,
		m.MaxUses, m.CurrentUses, m.ScheduleID,
		m.ValidFrom, m.ValidUntil, m.CreatedBy,
		m.CreatedAt, m.UpdatedAt,
	)
}
