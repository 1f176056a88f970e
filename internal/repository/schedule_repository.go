package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	bookingDomain "github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// ScheduleModel is the GORM model for the schedules table. The timetable owns
// the rows; this service only reads them.
type ScheduleModel struct {
	ID            int64     `gorm:"primaryKey"`
	RouteID       int64     `gorm:"not null;index"`
	DepartureDate time.Time `gorm:"type:date;not null"`
	DepartureTime string    `gorm:"type:varchar(5);not null"`
	ArrivalTime   string    `gorm:"type:varchar(5);not null"`
	Capacity      int       `gorm:"not null"`
	PriceCents    int64     `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (ScheduleModel) TableName() string {
	return "schedules"
}

// GormScheduleRepository implements ScheduleRepository using GORM.
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository.
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// FindByID returns a schedule by ID.
func (r *GormScheduleRepository) FindByID(ctx context.Context, id int64) (*bookingDomain.Schedule, error) {
	var model ScheduleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("schedule", strconv.FormatInt(id, 10))
		}
		return nil, domain.NewStorageError("find schedule", err)
	}
	return &bookingDomain.Schedule{
		ID:            model.ID,
		RouteID:       model.RouteID,
		DepartureDate: model.DepartureDate,
		DepartureTime: model.DepartureTime,
		ArrivalTime:   model.ArrivalTime,
		Capacity:      model.Capacity,
		PriceCents:    model.PriceCents,
	}, nil
}
