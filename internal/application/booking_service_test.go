package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/domain/cancellation"
	"github.com/railbook/service-booking/internal/domain/discount"
	"github.com/railbook/service-booking/internal/domain/payment"
	"github.com/railbook/service-booking/internal/events"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// payCash confirms b through the orchestrator.
func payCash(t *testing.T, env *testEnv, b *booking.Booking) {
	t.Helper()
	out, err := env.orchestrator.Pay(context.Background(), env.session, PayRequest{BookingID: b.ID(), Method: "cash"})
	require.NoError(t, err)
	require.True(t, out.Success)
}

func TestCancel_PendingBookingIsUnconditional(t *testing.T) {
	env := newTestEnv(t)
	env.schedules[9] = scheduleIn(9, -5) // already departed
	b := env.newBooking(t, 9)

	res, err := env.bookingSvc.Cancel(context.Background(), env.session, b.ID())
	require.NoError(t, err)

	assert.Equal(t, string(booking.StatusCancelled), res.Booking.Status)
	assert.Equal(t, int64(0), res.RefundCents)
	assert.Equal(t, booking.StatusCancelled, env.bookings.get(b.ID()).Status())
}

func TestCancel_ConfirmedWithinHalfRefundWindow(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBooking(t, 7) // departs in 30h
	payCash(t, env, b)

	res, err := env.bookingSvc.Cancel(context.Background(), env.session, b.ID())
	require.NoError(t, err)

	assert.Equal(t, int64(5000), res.RefundCents)
	assert.Equal(t, 50, res.RefundPercent)
	assert.Equal(t, booking.StatusCancelled, env.bookings.get(b.ID()).Status())

	p, err := env.payments.FindByBookingID(context.Background(), b.ID())
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, p.Status())
	assert.Equal(t, int64(5000), p.RefundCents())

	assert.Contains(t, env.publisher.published(), events.BookingCancelled)
}

func TestCancel_ConfirmedTooCloseToDeparture(t *testing.T) {
	env := newTestEnv(t)
	env.schedules[3] = scheduleIn(3, 10)
	b := env.newBooking(t, 3)
	payCash(t, env, b)
	before := env.bookings.get(b.ID())

	_, err := env.bookingSvc.Cancel(context.Background(), env.session, b.ID())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPolicyViolation))

	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 24, de.Fields["hours_before_departure"])
	assert.Equal(t, 10, de.Fields["hours_until_departure"])

	after := env.bookings.get(b.ID())
	assert.Equal(t, booking.StatusConfirmed, after.Status())
	assert.Equal(t, before.Version(), after.Version())
}

func TestCancel_DiscountedBookingRefundsShareOfCharge(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBooking(t, 5) // departs in 72h, full refund
	env.addDiscount(t, "SAVE20", discount.TypePercentage, 20, 0, nil)

	out, err := env.orchestrator.Pay(context.Background(), env.session, PayRequest{
		BookingID: b.ID(), Method: "card", Details: validCardDetails(), DiscountCode: "SAVE20",
	})
	require.NoError(t, err)
	require.True(t, out.Success)

	res, err := env.bookingSvc.Cancel(context.Background(), env.session, b.ID())
	require.NoError(t, err)

	assert.Equal(t, 100, res.RefundPercent)
	assert.Equal(t, int64(8000), res.RefundCents)
	assert.Equal(t, int64(8000), res.Booking.RefundCents)
	assert.Equal(t, []int64{8000}, env.gateway.refunds)

	stored := env.bookings.get(b.ID())
	assert.Equal(t, res.RefundCents, stored.RefundCents())

	p, err := env.payments.FindByBookingID(context.Background(), b.ID())
	require.NoError(t, err)
	assert.Equal(t, stored.RefundCents(), p.RefundCents())
}

func TestCancel_UsesStoredPolicy(t *testing.T) {
	env := newTestEnv(t)
	admin := auth.NewSession(uuid.New(), auth.RoleAdmin)
	_, err := env.policySvc.Replace(context.Background(), admin, PolicyRequest{
		HoursBeforeDeparture: 12,
		RefundTiers:          []cancellation.RefundTier{{MinHours: 24, Percent: 80}, {MinHours: 0, Percent: 20}},
	})
	require.NoError(t, err)

	env.schedules[3] = scheduleIn(3, 20)
	b := env.newBooking(t, 3)
	payCash(t, env, b)

	res, err := env.bookingSvc.Cancel(context.Background(), env.session, b.ID())
	require.NoError(t, err)
	assert.Equal(t, 20, res.RefundPercent)
	assert.Equal(t, int64(2000), res.RefundCents)
}

func TestCancel_TerminalStateRejectsEverything(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBooking(t, 7)
	ctx := context.Background()

	_, err := env.bookingSvc.Cancel(ctx, env.session, b.ID())
	require.NoError(t, err)

	_, err = env.bookingSvc.Cancel(ctx, env.session, b.ID())
	assert.True(t, errors.Is(err, domain.ErrInvalidState))

	_, err = env.bookingSvc.Confirm(ctx, b.ID())
	assert.True(t, errors.Is(err, domain.ErrInvalidState))

	_, err = env.orchestrator.Pay(ctx, env.session, PayRequest{BookingID: b.ID(), Method: "cash"})
	assert.True(t, errors.Is(err, domain.ErrInvalidState))

	assert.Equal(t, booking.StatusCancelled, env.bookings.get(b.ID()).Status())
}

func TestConfirm_OnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBooking(t, 7)
	ctx := context.Background()

	dto, err := env.bookingSvc.Confirm(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusConfirmed), dto.Status)

	_, err = env.bookingSvc.Confirm(ctx, b.ID())
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	assert.Equal(t, booking.StatusConfirmed, env.bookings.get(b.ID()).Status())
}

func TestCancel_Authorization(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBooking(t, 7)
	ctx := context.Background()

	_, err := env.bookingSvc.Cancel(ctx, auth.Anonymous(), b.ID())
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = env.bookingSvc.Cancel(ctx, auth.NewSession(uuid.New(), auth.RoleCustomer), b.ID())
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = env.bookingSvc.Cancel(ctx, auth.NewSession(uuid.New(), auth.RoleStaff), b.ID())
	assert.NoError(t, err)
}

func TestRefundQuote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending := env.newBooking(t, 7)
	q, err := env.bookingSvc.RefundQuote(ctx, env.session, pending.ID())
	require.NoError(t, err)
	assert.True(t, q.CanCancel)
	assert.Equal(t, int64(0), q.RefundCents)

	confirmed := env.newBooking(t, 7)
	payCash(t, env, confirmed)
	q, err = env.bookingSvc.RefundQuote(ctx, env.session, confirmed.ID())
	require.NoError(t, err)
	assert.True(t, q.CanCancel)
	assert.Equal(t, 30, q.HoursUntilDeparture)
	assert.Equal(t, 50, q.RefundPercent)
	assert.Equal(t, int64(5000), q.RefundCents)

	env.schedules[3] = scheduleIn(3, 10)
	late := env.newBooking(t, 3)
	payCash(t, env, late)
	q, err = env.bookingSvc.RefundQuote(ctx, env.session, late.ID())
	require.NoError(t, err)
	assert.False(t, q.CanCancel)
	assert.NotEmpty(t, q.Message)
	assert.Equal(t, booking.StatusConfirmed, env.bookings.get(late.ID()).Status())
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	args := m.Called(ctx, userID, message)
	return args.Error(0)
}

func TestHandleScheduleChanged_NotifiesEachHolderOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.newBooking(t, 7)
	env.newBooking(t, 7)
	cancelled := env.newBooking(t, 7)
	_, err := env.bookingSvc.Cancel(ctx, env.session, cancelled.ID())
	require.NoError(t, err)

	notifier := new(MockNotifier)
	env.bookingSvc.notifier = notifier

	other := uuid.New()
	b, err := booking.NewBooking(other, 7, []booking.Passenger{{Name: "Sara", Age: 29, SeatNumber: "D4"}}, 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, env.bookings.Save(ctx, b))

	want := "Your train (schedule 7) has changed: now departing 2026-03-11 19:30 (signal failure)."
	notifier.On("Notify", mock.Anything, env.owner, want).Return(nil).Once()
	notifier.On("Notify", mock.Anything, other, want).Return(errors.New("queue unavailable")).Once()

	err = env.bookingSvc.HandleScheduleChanged(ctx, events.ScheduleChangedEvent{
		ScheduleID:    7,
		DepartureDate: "2026-03-11",
		DepartureTime: "19:30",
		Reason:        "signal failure",
	})
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestCancelAndConfirm_GiveUpWhenBookingStaysLocked(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBooking(t, 7)
	ctx := context.Background()

	unlock, err := env.locker.Lock(ctx, bookingLockKey(b.ID()))
	require.NoError(t, err)
	defer unlock()

	done := make(chan error, 2)
	go func() {
		_, err := env.bookingSvc.Cancel(ctx, env.session, b.ID())
		done <- err
	}()
	go func() {
		_, err := env.bookingSvc.Confirm(ctx, b.ID())
		done <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			assert.ErrorIs(t, err, domain.ErrConflict)
		case <-time.After(5 * time.Second):
			t.Fatal("booking operation kept waiting for the lock")
		}
	}
	assert.Equal(t, booking.StatusPending, env.bookings.get(b.ID()).Status())
}
