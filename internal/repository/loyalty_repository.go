package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/railbook/service-booking/internal/domain/loyalty"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// LoyaltyAccountModel holds one user's point balance.
type LoyaltyAccountModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Points    int64     `gorm:"not null;default:0;check:points >= 0"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName sets the table name.
func (LoyaltyAccountModel) TableName() string { return "loyalty_accounts" }

// LoyaltyEntryModel is one row of the points ledger.
type LoyaltyEntryModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_loyalty_entries_user_created,priority:1"`
	Type         string     `gorm:"type:varchar(20);not null"`
	Points       int64      `gorm:"not null"`
	BalanceAfter int64      `gorm:"not null"`
	BookingID    *uuid.UUID `gorm:"type:uuid;index"`
	Description  string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;index:idx_loyalty_entries_user_created,priority:2"`
}

// TableName sets the table name.
func (LoyaltyEntryModel) TableName() string { return "loyalty_entries" }

// GormLoyaltyRepository implements loyalty.Repository. Balance changes are single
// conditional UPDATE statements so concurrent grants and spends never lose writes.
type GormLoyaltyRepository struct {
	db *gorm.DB
}

// NewGormLoyaltyRepository creates a new GormLoyaltyRepository.
func NewGormLoyaltyRepository(db *gorm.DB) *GormLoyaltyRepository {
	return &GormLoyaltyRepository{db: db}
}

// Balance returns the user's points; users without an account have 0.
func (r *GormLoyaltyRepository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var points []int64
	if err := r.db.WithContext(ctx).Model(&LoyaltyAccountModel{}).
		Where("user_id = ?", userID).
		Pluck("points", &points).Error; err != nil {
		return 0, domain.NewStorageError("read loyalty balance", err)
	}
	if len(points) == 0 {
		return 0, nil
	}
	return points[0], nil
}

// Credit adds e.Points, creating the account on first use, and appends e.
func (r *GormLoyaltyRepository) Credit(ctx context.Context, e *loyalty.Entry) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := tx.Raw(`
			INSERT INTO loyalty_accounts (user_id, points, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE
			SET points = loyalty_accounts.points + EXCLUDED.points, updated_at = EXCLUDED.updated_at
			RETURNING points`,
			e.UserID, e.Points, time.Now().UTC()).Row()
		if err := row.Scan(&balance); err != nil {
			return domain.NewStorageError("credit loyalty points", err)
		}
		return r.appendEntry(tx, e, balance)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Debit subtracts e.Points only when the balance covers it.
func (r *GormLoyaltyRepository) Debit(ctx context.Context, e *loyalty.Entry) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var remaining []int64
		if err := tx.Raw(`
			UPDATE loyalty_accounts
			SET points = points - ?, updated_at = ?
			WHERE user_id = ? AND points >= ?
			RETURNING points`,
			e.Points, time.Now().UTC(), e.UserID, e.Points).Scan(&remaining).Error; err != nil {
			return domain.NewStorageError("debit loyalty points", err)
		}
		if len(remaining) == 0 {
			available, err := r.Balance(ctx, e.UserID)
			if err != nil {
				return err
			}
			balance = available
			return domain.NewInsufficientBalanceError(e.Points, available)
		}
		balance = remaining[0]
		return r.appendEntry(tx, e, balance)
	})
	return balance, err
}

func (r *GormLoyaltyRepository) appendEntry(tx *gorm.DB, e *loyalty.Entry, balance int64) error {
	e.BalanceAfter = balance
	model := LoyaltyEntryModel{
		ID:           e.ID,
		UserID:       e.UserID,
		Type:         string(e.Type),
		Points:       e.Points,
		BalanceAfter: e.BalanceAfter,
		BookingID:    e.BookingID,
		Description:  e.Description,
		CreatedAt:    e.CreatedAt,
	}
	if err := tx.Create(&model).Error; err != nil {
		return domain.NewStorageError("append loyalty entry", err)
	}
	return nil
}

// ListEntries returns the newest entries first.
func (r *GormLoyaltyRepository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*loyalty.Entry, error) {
	var models []LoyaltyEntryModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, domain.NewStorageError("list loyalty entries", err)
	}

	entries := make([]*loyalty.Entry, len(models))
	for i, m := range models {
		entries[i] = &loyalty.Entry{
			ID:           m.ID,
			UserID:       m.UserID,
			Type:         loyalty.EntryType(m.Type),
			Points:       m.Points,
			BalanceAfter: m.BalanceAfter,
			BookingID:    m.BookingID,
			Description:  m.Description,
			CreatedAt:    m.CreatedAt,
		}
	}
	return entries, nil
}
