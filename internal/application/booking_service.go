package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/adapter"
	"github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/domain/cancellation"
	"github.com/railbook/service-booking/internal/domain/payment"
	"github.com/railbook/service-booking/internal/events"
	"github.com/railbook/service-booking/internal/lock"
	"github.com/railbook/service-booking/internal/notify"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, subject string, data any) error
}

// BookingDTO is the API response DTO for booking data.
type BookingDTO struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	ScheduleID  int64               `json:"schedule_id"`
	Passengers  []booking.Passenger `json:"passengers"`
	Status      string              `json:"status"`
	TotalCents  int64               `json:"total_cents"`
	Currency    string              `json:"currency"`
	RefundCents int64               `json:"refund_cents"`
	ConfirmedAt *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	Version     int64               `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// CancellationResult is what a successful cancellation returns.
type CancellationResult struct {
	Booking       BookingDTO `json:"booking"`
	RefundCents   int64      `json:"refund_cents"`
	RefundPercent int        `json:"refund_percent"`
}

// RefundQuoteDTO tells the caller what cancelling now would do.
type RefundQuoteDTO struct {
	BookingID           uuid.UUID `json:"booking_id"`
	Status              string    `json:"status"`
	CanCancel           bool      `json:"can_cancel"`
	HoursUntilDeparture int       `json:"hours_until_departure"`
	RefundPercent       int       `json:"refund_percent"`
	RefundCents         int64     `json:"refund_cents"`
	Message             string    `json:"message,omitempty"`
}

// BookingService owns the booking lifecycle outside of payment.
type BookingService struct {
	bookings    booking.BookingRepository
	schedules   booking.ScheduleRepository
	payments    payment.PaymentRepository
	policies    *PolicyService
	adapters    *adapter.Registry
	locker      lock.Locker
	lockTimeout time.Duration
	publisher   EventPublisher
	notifier    notify.Notifier
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewBookingService creates a new BookingService. lockTimeout bounds the wait for a
// concurrent change to the same booking. Departure times are read in loc; now may be nil.
func NewBookingService(
	bookings booking.BookingRepository,
	schedules booking.ScheduleRepository,
	payments payment.PaymentRepository,
	policies *PolicyService,
	adapters *adapter.Registry,
	locker lock.Locker,
	lockTimeout time.Duration,
	publisher EventPublisher,
	notifier notify.Notifier,
	loc *time.Location,
	now func() time.Time,
	logger *zap.Logger,
) *BookingService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	return &BookingService{
		bookings:    bookings,
		schedules:   schedules,
		payments:    payments,
		policies:    policies,
		adapters:    adapters,
		locker:      locker,
		lockTimeout: lockTimeout,
		publisher:   publisher,
		notifier:    notifier,
		loc:         loc,
		now:         now,
		logger:      logger,
	}
}

// GetBooking returns a booking visible to the session.
func (s *BookingService) GetBooking(ctx context.Context, session auth.Session, id uuid.UUID) (*BookingDTO, error) {
	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(session, b, auth.CapViewAllPayments); err != nil {
		return nil, err
	}
	dto := toBookingDTO(b)
	return &dto, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Payments confirm through the
// orchestrator; this is the bare lifecycle transition.
func (s *BookingService) Confirm(ctx context.Context, id uuid.UUID) (*BookingDTO, error) {
	unlock, err := s.lockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Confirm(); err != nil {
		return nil, err
	}
	b.IncrementVersion()
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking confirmed", zap.String("booking_id", id.String()))
	dto := toBookingDTO(b)
	return &dto, nil
}

// Cancel cancels a booking on behalf of its owner or staff. A CONFIRMED booking is
// checked against the active policy before anything changes; the refund is recorded
// on its payment and returned through the payment method.
func (s *BookingService) Cancel(ctx context.Context, session auth.Session, id uuid.UUID) (*CancellationResult, error) {
	unlock, err := s.lockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(session, b, auth.CapCancelAnyBooking); err != nil {
		return nil, err
	}

	previous := b.Status()
	var (
		hours  int
		policy cancellation.Policy
		paid   *payment.Payment
	)
	if previous == booking.StatusConfirmed {
		hours, err = s.hoursUntilDeparture(ctx, b.ScheduleID())
		if err != nil {
			return nil, err
		}
		policy, err = s.policies.Active(ctx)
		if err != nil {
			return nil, err
		}
		paid, err = s.livePayment(ctx, b.ID())
		if err != nil {
			return nil, err
		}
	}

	var paidCents int64
	if paid != nil {
		paidCents = paid.AmountCents()
	}
	refund, err := b.Cancel(hours, policy, paidCents)
	if err != nil {
		s.logger.Info("booking cancellation refused",
			zap.String("booking_id", id.String()),
			zap.String("status", string(previous)),
			zap.Int("hours_until_departure", hours),
			zap.Error(err),
		)
		return nil, err
	}
	b.IncrementVersion()
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	percent := 0
	if previous == booking.StatusConfirmed {
		percent = policy.RefundPercent(hours)
		s.refundPayment(ctx, b, paid, refund)
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", id.String()),
		zap.String("previous_status", string(previous)),
		zap.Int64("refund_cents", refund),
		zap.Int("refund_percent", percent),
	)

	s.publish(ctx, events.TopicBookingEvents, events.BookingCancelled, b.ID(), events.BookingCancelledEvent{
		BookingID:     b.ID(),
		UserID:        b.UserID(),
		ScheduleID:    b.ScheduleID(),
		PreviousState: string(previous),
		RefundCents:   refund,
		RefundPercent: percent,
		CancelledBy:   session.UserID,
		OccurredAt:    s.now().UTC(),
	})
	s.notify(ctx, b.UserID(), cancellationMessage(b, refund))

	return &CancellationResult{
		Booking:       toBookingDTO(b),
		RefundCents:   refund,
		RefundPercent: percent,
	}, nil
}

// RefundQuote reports what cancelling the booking right now would refund.
func (s *BookingService) RefundQuote(ctx context.Context, session auth.Session, id uuid.UUID) (*RefundQuoteDTO, error) {
	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(session, b, auth.CapCancelAnyBooking); err != nil {
		return nil, err
	}

	quote := &RefundQuoteDTO{BookingID: b.ID(), Status: string(b.Status())}
	switch b.Status() {
	case booking.StatusCancelled:
		quote.Message = "Booking is already cancelled."
		return quote, nil
	case booking.StatusPending:
		quote.CanCancel = true
		quote.Message = "Booking is unpaid; cancelling it refunds nothing."
		return quote, nil
	}

	hours, err := s.hoursUntilDeparture(ctx, b.ScheduleID())
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Active(ctx)
	if err != nil {
		return nil, err
	}

	quote.HoursUntilDeparture = hours
	quote.CanCancel = policy.CanCancel(hours)
	if !quote.CanCancel {
		quote.Message = policy.ViolationMessage(hours)
		return quote, nil
	}
	base := b.TotalCents()
	paid, err := s.livePayment(ctx, b.ID())
	if err != nil {
		return nil, err
	}
	if paid != nil {
		base = paid.AmountCents()
	}
	quote.RefundPercent = policy.RefundPercent(hours)
	quote.RefundCents = policy.CalculateRefund(base, hours)
	return quote, nil
}

// HandleScheduleChanged notifies every holder of an active booking on the schedule.
func (s *BookingService) HandleScheduleChanged(ctx context.Context, event events.ScheduleChangedEvent) error {
	bookings, err := s.bookings.FindActiveBySchedule(ctx, event.ScheduleID)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Your train (schedule %d) has changed", event.ScheduleID)
	if event.DepartureDate != "" || event.DepartureTime != "" {
		msg += fmt.Sprintf(": now departing %s %s", event.DepartureDate, event.DepartureTime)
	}
	if event.Reason != "" {
		msg += fmt.Sprintf(" (%s)", event.Reason)
	}
	msg += "."

	notified := make(map[uuid.UUID]bool, len(bookings))
	for _, b := range bookings {
		if notified[b.UserID()] {
			continue
		}
		notified[b.UserID()] = true
		s.notify(ctx, b.UserID(), msg)
	}

	s.logger.Info("schedule change notified",
		zap.Int64("schedule_id", event.ScheduleID),
		zap.Int("bookings", len(bookings)),
		zap.Int("users", len(notified)),
	)
	return nil
}

func (s *BookingService) hoursUntilDeparture(ctx context.Context, scheduleID int64) (int, error) {
	sched, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	departsAt, err := sched.DepartsAt(s.loc)
	if err != nil {
		return 0, domain.NewValidationError(err.Error())
	}
	return booking.HoursUntil(s.now(), departsAt), nil
}

// livePayment returns the booking's payment, or nil when it was never paid through
// this service.
func (s *BookingService) livePayment(ctx context.Context, bookingID uuid.UUID) (*payment.Payment, error) {
	p, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// refundPayment records refundCents on the booking's payment and returns the money
// through the method it was paid with. The cancellation itself is already committed,
// so failures here are logged for reconciliation rather than returned.
func (s *BookingService) refundPayment(ctx context.Context, b *booking.Booking, p *payment.Payment, refundCents int64) {
	log := s.logger.With(zap.String("booking_id", b.ID().String()))
	if p == nil {
		log.Warn("confirmed booking has no payment record, refund not recorded")
		return
	}
	log = log.With(zap.String("payment_id", p.ID().String()), zap.Int64("refund_cents", refundCents))

	if err := p.Refund(refundCents); err != nil {
		log.Error("payment cannot be refunded", zap.Error(err))
		return
	}
	p.IncrementVersion()
	if err := s.payments.Update(ctx, p); err != nil {
		log.Error("failed to record refund", zap.Error(err))
		return
	}

	if refundCents == 0 || s.adapters == nil {
		return
	}
	a, err := s.adapters.Lookup(p.MethodFamily())
	if err != nil {
		log.Warn("payment method no longer registered, refund must be paid out manually", zap.Error(err))
		return
	}
	refunder, ok := a.(adapter.Refunder)
	if !ok {
		log.Info("payment method has no automatic refund, refund must be paid out manually",
			zap.String("method", p.Method()))
		return
	}
	details := map[string]string{
		adapter.DetailUserID:    p.UserID().String(),
		adapter.DetailBookingID: b.ID().String(),
		adapter.DetailCurrency:  p.Currency(),
	}
	if err := refunder.RefundPayment(ctx, p.Reference(), refundCents, details); err != nil {
		log.Error("failed to return refund through payment method", zap.String("method", p.Method()), zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, topic, eventType string, subject uuid.UUID, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, eventType, subject.String(), data); err != nil {
		s.logger.Warn("failed to publish booking event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *BookingService) notify(ctx context.Context, userID uuid.UUID, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, msg); err != nil {
		s.logger.Warn("failed to send notification", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// authorizeBooking lets the owner through, and other users only with capability.
func authorizeBooking(session auth.Session, b *booking.Booking, capability auth.Capability) error {
	if !session.Authenticated {
		return domain.NewUnauthorizedError("sign in to manage bookings")
	}
	if session.Owns(b.UserID()) || session.Can(capability) {
		return nil
	}
	return domain.NewForbiddenError("booking belongs to another user")
}

// lockBooking waits at most lockTimeout for the booking's lock.
func (s *BookingService) lockBooking(ctx context.Context, id uuid.UUID) (lock.Unlock, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, bookingLockKey(id))
	if err != nil {
		return nil, lockError(err)
	}
	return unlock, nil
}

func bookingLockKey(id uuid.UUID) string {
	return "booking:" + id.String()
}

func lockError(err error) error {
	if errors.Is(err, lock.ErrNotAcquired) {
		return domain.NewConflictError("booking is being updated by another request, please try again")
	}
	return domain.NewStorageError("acquire booking lock", err)
}

func cancellationMessage(b *booking.Booking, refundCents int64) string {
	if refundCents > 0 {
		return fmt.Sprintf("Booking %s was cancelled. A refund of %s will be returned to your payment method.",
			b.ID(), formatCents(refundCents, b.Currency()))
	}
	return fmt.Sprintf("Booking %s was cancelled.", b.ID())
}

func formatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

func toBookingDTO(b *booking.Booking) BookingDTO {
	return BookingDTO{
		ID:          b.ID(),
		UserID:      b.UserID(),
		ScheduleID:  b.ScheduleID(),
		Passengers:  b.Passengers(),
		Status:      string(b.Status()),
		TotalCents:  b.TotalCents(),
		Currency:    b.Currency(),
		RefundCents: b.RefundCents(),
		ConfirmedAt: b.ConfirmedAt(),
		CancelledAt: b.CancelledAt(),
		Version:     b.Version(),
		CreatedAt:   b.CreatedAt(),
		UpdatedAt:   b.UpdatedAt(),
	}
}
