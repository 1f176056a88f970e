package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// BookingModel is the GORM persistence model for the bookings table.
type BookingModel struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	ScheduleID  int64            `gorm:"not null;index"`
	Status      string           `gorm:"type:varchar(20);not null;default:'PENDING'"`
	TotalCents  int64            `gorm:"not null"`
	Currency    string           `gorm:"type:varchar(3);not null;default:'USD'"`
	RefundCents int64            `gorm:"not null;default:0"`
	ConfirmedAt *time.Time       `gorm:"type:timestamptz"`
	CancelledAt *time.Time       `gorm:"type:timestamptz"`
	Version     int64            `gorm:"not null;default:1"`
	CreatedAt   time.Time        `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time        `gorm:"type:timestamptz;not null;default:now()"`
	Passengers  []PassengerModel `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM.
func (BookingModel) TableName() string {
	return "bookings"
}

// PassengerModel is one seat holder of a booking.
type PassengerModel struct {
	ID         uint      `gorm:"primaryKey"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Position   int       `gorm:"not null"`
	Name       string    `gorm:"type:varchar(120);not null"`
	Age        int       `gorm:"not null"`
	SeatNumber string    `gorm:"type:varchar(10);not null"`
	BringPet   bool      `gorm:"not null;default:false"`
	Wheelchair bool      `gorm:"not null;default:false"`
}

// TableName specifies the table name for GORM.
func (PassengerModel) TableName() string {
	return "booking_passengers"
}

// BookingRepositoryImpl is the GORM-based implementation of BookingRepository.
type BookingRepositoryImpl struct {
	db *gorm.DB
}

// NewBookingRepository creates a new GORM-based booking repository.
func NewBookingRepository(db *gorm.DB) *BookingRepositoryImpl {
	return &BookingRepositoryImpl{db: db}
}

func orderedPassengers(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindByID retrieves a booking with its passengers.
func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).
		Preload("Passengers", orderedPassengers).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, domain.NewStorageError("find booking", err)
	}
	return toBookingDomain(&model), nil
}

// FindActiveBySchedule retrieves every non-cancelled booking on a schedule.
func (r *BookingRepositoryImpl) FindActiveBySchedule(ctx context.Context, scheduleID int64) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	err := r.db.WithContext(ctx).
		Preload("Passengers", orderedPassengers).
		Where("schedule_id = ? AND status <> ?", scheduleID, string(bookingDomain.StatusCancelled)).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, domain.NewStorageError("find bookings by schedule", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bookings[i] = toBookingDomain(&models[i])
	}
	return bookings, nil
}

// Save persists a new booking and its passengers in one transaction.
func (r *BookingRepositoryImpl) Save(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domain.NewStorageError("save booking", err)
	}
	return nil
}

// Update persists a status change with optimistic locking. Passengers are immutable
// after creation and are not rewritten.
func (r *BookingRepositoryImpl) Update(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	previousVersion := b.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("status", "refund_cents", "confirmed_at", "cancelled_at", "version", "updated_at").
		Omit("Passengers").
		Updates(model)

	if result.Error != nil {
		return domain.NewStorageError("update booking", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

func toBookingDomain(model *BookingModel) *bookingDomain.Booking {
	passengers := make([]bookingDomain.Passenger, len(model.Passengers))
	for i, p := range model.Passengers {
		passengers[i] = bookingDomain.Passenger{
			Name:       p.Name,
			Age:        p.Age,
			SeatNumber: p.SeatNumber,
			BringPet:   p.BringPet,
			Wheelchair: p.Wheelchair,
		}
	}
	return bookingDomain.Reconstitute(
		model.ID,
		model.UserID,
		model.ScheduleID,
		passengers,
		bookingDomain.Status(model.Status),
		model.TotalCents,
		model.Currency,
		model.RefundCents,
		model.ConfirmedAt,
		model.CancelledAt,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func toBookingModel(b *bookingDomain.Booking) *BookingModel {
	passengers := b.Passengers()
	models := make([]PassengerModel, len(passengers))
	for i, p := range passengers {
		models[i] = PassengerModel{
			BookingID:  b.ID(),
			Position:   i,
			Name:       p.Name,
			Age:        p.Age,
			SeatNumber: p.SeatNumber,
			BringPet:   p.BringPet,
			Wheelchair: p.Wheelchair,
		}
	}
	return &BookingModel{
		ID:          b.ID(),
		UserID:      b.UserID(),
		ScheduleID:  b.ScheduleID(),
		Status:      string(b.Status()),
		TotalCents:  b.TotalCents(),
		Currency:    b.Currency(),
		RefundCents: b.RefundCents(),
		ConfirmedAt: b.ConfirmedAt(),
		CancelledAt: b.CancelledAt(),
		Version:     b.Version(),
		CreatedAt:   b.CreatedAt(),
		UpdatedAt:   b.UpdatedAt(),
		Passengers:  models,
	}
}
