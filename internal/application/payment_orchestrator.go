package application

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/adapter"
	"github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/events"
	"github.com/railbook/service-booking/internal/lock"
	"github.com/railbook/service-booking/internal/notify"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
	"github.com/railbook/service-booking/internal/saga"
)

// Failure codes carried by an unsuccessful PaymentOutcome.
const (
	FailureValidation = "validation_failed"
	FailurePayment    = "payment_failed"
)

// PayRequest is what the caller supplies to pay for a booking.
type PayRequest struct {
	BookingID    uuid.UUID         `json:"-"`
	Method       string            `json:"method" binding:"required"`
	Details      map[string]string `json:"details"`
	DiscountCode string            `json:"discount_code"`
}

// PaymentOutcome reports a payment attempt. User-correctable failures come back
// here with Success false; everything else is returned as an error.
type PaymentOutcome struct {
	Success             bool       `json:"success"`
	BookingID           uuid.UUID  `json:"booking_id"`
	BookingStatus       string     `json:"booking_status"`
	OriginalAmountCents int64      `json:"original_amount_cents"`
	DiscountCode        string     `json:"discount_code,omitempty"`
	DiscountCents       int64      `json:"discount_cents"`
	FinalAmountCents    int64      `json:"final_amount_cents"`
	Currency            string     `json:"currency"`
	Method              string     `json:"method,omitempty"`
	PaymentID           *uuid.UUID `json:"payment_id,omitempty"`
	Reference           string     `json:"reference,omitempty"`
	PointsGranted       int64      `json:"points_granted"`
	FailureCode         string     `json:"failure_code,omitempty"`
	Message             string     `json:"message,omitempty"`
}

// PaymentOrchestrator runs the pay use case: discount, validation, processing and,
// only after processing succeeded, the payment saga.
type PaymentOrchestrator struct {
	bookings    booking.BookingRepository
	discounts   *DiscountService
	adapters    *adapter.Registry
	sagaSvc     *saga.PaymentSagaService
	locker      lock.Locker
	lockTimeout time.Duration
	publisher   EventPublisher
	notifier    notify.Notifier
	logger      *zap.Logger
}

// NewPaymentOrchestrator creates a new PaymentOrchestrator. lockTimeout bounds the
// wait for a concurrent payment on the same booking.
func NewPaymentOrchestrator(
	bookings booking.BookingRepository,
	discounts *DiscountService,
	adapters *adapter.Registry,
	sagaSvc *saga.PaymentSagaService,
	locker lock.Locker,
	lockTimeout time.Duration,
	publisher EventPublisher,
	notifier notify.Notifier,
	logger *zap.Logger,
) *PaymentOrchestrator {
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	return &PaymentOrchestrator{
		bookings:    bookings,
		discounts:   discounts,
		adapters:    adapters,
		sagaSvc:     sagaSvc,
		locker:      locker,
		lockTimeout: lockTimeout,
		publisher:   publisher,
		notifier:    notifier,
		logger:      logger,
	}
}

// Pay charges a PENDING booking and confirms it. Payments on one booking are
// serialized; a second attempt after a successful one fails with an invalid
// transition error. Nothing is written unless the adapter processed the payment.
func (o *PaymentOrchestrator) Pay(ctx context.Context, session auth.Session, req PayRequest) (*PaymentOutcome, error) {
	if !session.Authenticated {
		return nil, domain.NewUnauthorizedError("sign in to pay for a booking")
	}

	lockCtx, cancel := context.WithTimeout(ctx, o.lockTimeout)
	unlock, err := o.locker.Lock(lockCtx, bookingLockKey(req.BookingID))
	cancel()
	if err != nil {
		return nil, lockError(err)
	}
	defer unlock()

	b, err := o.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !session.Owns(b.UserID()) && !session.Can(auth.CapCancelAnyBooking) {
		return nil, domain.NewForbiddenError("booking belongs to another user")
	}
	// fail fast before anything is charged; the saga re-checks on write
	if _, err := b.Status().Next(booking.ActionConfirm); err != nil {
		return nil, err
	}

	log := o.logger.With(
		zap.String("booking_id", b.ID().String()),
		zap.String("user_id", session.UserID.String()),
	)

	// 1-2. discount and final amount
	scheduleID := b.ScheduleID()
	d, err := o.discounts.FindApplicable(ctx, req.DiscountCode, &scheduleID)
	if err != nil {
		return nil, err
	}
	discountCents := o.discounts.Apply(d, b.TotalCents())
	finalAmount := b.TotalCents() - discountCents
	if finalAmount < 0 {
		finalAmount = 0
	}

	outcome := &PaymentOutcome{
		BookingID:           b.ID(),
		BookingStatus:       string(b.Status()),
		OriginalAmountCents: b.TotalCents(),
		DiscountCents:       discountCents,
		FinalAmountCents:    finalAmount,
		Currency:            b.Currency(),
	}
	if d != nil {
		outcome.DiscountCode = d.Code()
	}

	a, err := o.adapters.Lookup(req.Method)
	if err != nil {
		return o.fail(ctx, b, outcome, req.Method, FailureValidation, "Unsupported payment method"), nil
	}
	outcome.Method = a.MethodName()

	details := make(map[string]string, len(req.Details)+4)
	for k, v := range req.Details {
		details[k] = v
	}
	details[adapter.DetailAmountCents] = strconv.FormatInt(finalAmount, 10)
	details[adapter.DetailUserID] = session.UserID.String()
	details[adapter.DetailBookingID] = b.ID().String()
	details[adapter.DetailCurrency] = b.Currency()

	// 3. validate
	if msg := a.ValidateDetails(ctx, details); msg != "" {
		log.Info("payment details rejected", zap.String("method", a.MethodName()), zap.String("reason", msg))
		return o.fail(ctx, b, outcome, string(a.Family()), FailureValidation, msg), nil
	}

	// 4. process
	reference, ok := a.ProcessPayment(ctx, finalAmount, details)
	if !ok {
		log.Warn("payment processing failed", zap.String("method", a.MethodName()), zap.Int64("amount_cents", finalAmount))
		return o.fail(ctx, b, outcome, string(a.Family()), FailurePayment,
			"Payment could not be processed. Your booking is still pending; please try again or choose another method."), nil
	}

	// 5. record effects; the loyalty wallet does not earn points on itself
	p, err := o.sagaSvc.CompletePayment(ctx, saga.Charge{
		Booking:       b,
		Adapter:       a,
		Reference:     reference,
		Details:       details,
		Discount:      d,
		DiscountCents: discountCents,
		GrantPoints:   a.Family() != adapter.FamilyLoyaltyWallet,
	})
	if err != nil {
		log.Error("payment completion rolled back", zap.String("reference", reference), zap.Error(err))
		o.publishFailed(ctx, b, string(a.Family()), finalAmount, FailurePayment, err.Error())
		return nil, err
	}

	paymentID := p.ID()
	outcome.Success = true
	outcome.BookingStatus = string(b.Status())
	outcome.PaymentID = &paymentID
	outcome.Reference = p.Reference()
	outcome.PointsGranted = p.PointsGranted()
	outcome.Message = "Payment successful. Your booking is confirmed."

	log.Info("payment completed",
		zap.String("payment_id", paymentID.String()),
		zap.String("method", a.MethodName()),
		zap.Int64("amount_cents", finalAmount),
		zap.Int64("discount_cents", discountCents),
		zap.Int64("points_granted", p.PointsGranted()),
	)

	now := time.Now().UTC()
	o.publish(ctx, events.TopicPaymentEvents, events.PaymentCompleted, b.ID(), events.PaymentCompletedEvent{
		PaymentID:     paymentID,
		BookingID:     b.ID(),
		UserID:        b.UserID(),
		Method:        p.Method(),
		MethodFamily:  p.MethodFamily(),
		AmountCents:   p.AmountCents(),
		DiscountCents: p.DiscountCents(),
		DiscountID:    p.DiscountID(),
		PointsGranted: p.PointsGranted(),
		Currency:      p.Currency(),
		OccurredAt:    now,
	})
	o.publish(ctx, events.TopicBookingEvents, events.BookingConfirmed, b.ID(), events.BookingConfirmedEvent{
		BookingID:   b.ID(),
		UserID:      b.UserID(),
		ScheduleID:  b.ScheduleID(),
		PaymentID:   paymentID,
		AmountCents: p.AmountCents(),
		Currency:    p.Currency(),
		OccurredAt:  now,
	})
	o.notify(ctx, b.UserID(), confirmationMessage(b.ID(), p.AmountCents(), p.Currency(), p.PointsGranted()))

	return outcome, nil
}

func (o *PaymentOrchestrator) fail(ctx context.Context, b *booking.Booking, outcome *PaymentOutcome, family, code, msg string) *PaymentOutcome {
	outcome.Success = false
	outcome.FailureCode = code
	outcome.Message = msg
	o.publishFailed(ctx, b, family, outcome.FinalAmountCents, code, msg)
	return outcome
}

func (o *PaymentOrchestrator) publishFailed(ctx context.Context, b *booking.Booking, family string, amount int64, code, reason string) {
	o.publish(ctx, events.TopicPaymentEvents, events.PaymentFailed, b.ID(), events.PaymentFailedEvent{
		BookingID:    b.ID(),
		UserID:       b.UserID(),
		MethodFamily: family,
		AmountCents:  amount,
		Code:         code,
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	})
}

func (o *PaymentOrchestrator) publish(ctx context.Context, topic, eventType string, subject uuid.UUID, data any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, topic, eventType, subject.String(), data); err != nil {
		o.logger.Warn("failed to publish payment event", zap.String("type", eventType), zap.Error(err))
	}
}

func (o *PaymentOrchestrator) notify(ctx context.Context, userID uuid.UUID, msg string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, userID, msg); err != nil {
		o.logger.Warn("failed to send notification", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func confirmationMessage(bookingID uuid.UUID, amountCents int64, currency string, points int64) string {
	msg := "Booking " + bookingID.String() + " is confirmed. Paid " + formatCents(amountCents, currency) + "."
	if points > 0 {
		msg += " You earned " + strconv.FormatInt(points, 10) + " loyalty points."
	}
	return msg
}
