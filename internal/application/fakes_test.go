package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/adapter"
	"github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/domain/cancellation"
	"github.com/railbook/service-booking/internal/domain/discount"
	"github.com/railbook/service-booking/internal/domain/loyalty"
	"github.com/railbook/service-booking/internal/domain/payment"
	"github.com/railbook/service-booking/internal/lock"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
	"github.com/railbook/service-booking/internal/saga"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// --- bookings ---

type memBookings struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*booking.Booking
	updateErr error
}

func newMemBookings() *memBookings {
	return &memBookings{items: make(map[uuid.UUID]*booking.Booking)}
}

func copyBooking(b *booking.Booking) *booking.Booking {
	return booking.Reconstitute(b.ID(), b.UserID(), b.ScheduleID(), b.Passengers(), b.Status(),
		b.TotalCents(), b.Currency(), b.RefundCents(), b.ConfirmedAt(), b.CancelledAt(),
		b.Version(), b.CreatedAt(), b.UpdatedAt())
}

func (r *memBookings) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return copyBooking(b), nil
}

func (r *memBookings) FindActiveBySchedule(_ context.Context, scheduleID int64) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.items {
		if b.ScheduleID() == scheduleID && b.Status() != booking.StatusCancelled {
			out = append(out, copyBooking(b))
		}
	}
	return out, nil
}

func (r *memBookings) Save(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.ID()] = copyBooking(b)
	return nil
}

func (r *memBookings) Update(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.items[b.ID()]
	if !ok {
		return domain.NewNotFoundError("booking", b.ID().String())
	}
	if stored.Version() != b.Version()-1 {
		return domain.NewConflictError("booking was modified concurrently")
	}
	r.items[b.ID()] = copyBooking(b)
	return nil
}

func (r *memBookings) get(id uuid.UUID) *booking.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyBooking(r.items[id])
}

type memSchedules map[int64]*booking.Schedule

func (m memSchedules) FindByID(_ context.Context, id int64) (*booking.Schedule, error) {
	s, ok := m[id]
	if !ok {
		return nil, domain.NewNotFoundError("schedule", "")
	}
	return s, nil
}

// scheduleIn returns a schedule departing hours after testNow.
func scheduleIn(id int64, hours int) *booking.Schedule {
	dep := testNow.Add(time.Duration(hours) * time.Hour)
	return &booking.Schedule{
		ID:            id,
		RouteID:       1,
		DepartureDate: time.Date(dep.Year(), dep.Month(), dep.Day(), 0, 0, 0, 0, time.UTC),
		DepartureTime: dep.Format("15:04"),
		ArrivalTime:   dep.Add(3 * time.Hour).Format("15:04"),
		Capacity:      300,
		PriceCents:    5000,
	}
}

// --- payments ---

type memPayments struct {
	mu    sync.Mutex
	items map[uuid.UUID]*payment.Payment
}

func newMemPayments() *memPayments {
	return &memPayments{items: make(map[uuid.UUID]*payment.Payment)}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	return payment.Reconstitute(p.ID(), p.BookingID(), p.UserID(), p.Status(),
		p.OriginalAmountCents(), p.DiscountCents(), p.AmountCents(), p.DiscountID(),
		p.Currency(), p.Method(), p.MethodFamily(), p.Reference(),
		p.PointsGranted(), p.RefundCents(), p.RefundedAt(), p.FailureReason(),
		p.Version(), p.CreatedAt(), p.UpdatedAt())
}

func (r *memPayments) FindByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment", id.String())
	}
	return copyPayment(p), nil
}

func (r *memPayments) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.BookingID() == bookingID && p.Status() != payment.StatusFailed {
			return copyPayment(p), nil
		}
	}
	return nil, domain.NewNotFoundError("payment for booking", bookingID.String())
}

func (r *memPayments) ListAll(_ context.Context, page, limit int) ([]*payment.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*payment.Payment, 0, len(r.items))
	for _, p := range r.items {
		all = append(all, copyPayment(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, int64(len(all)), nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *memPayments) GetRevenueStats(_ context.Context) (int64, map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revenue int64
	counts := make(map[string]int64)
	for _, p := range r.items {
		counts[string(p.Status())]++
		if p.Status() != payment.StatusFailed {
			revenue += p.AmountCents() - p.RefundCents()
		}
	}
	return revenue, counts, nil
}

func (r *memPayments) Save(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID()] = copyPayment(p)
	return nil
}

func (r *memPayments) Update(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[p.ID()]
	if !ok {
		return domain.NewNotFoundError("payment", p.ID().String())
	}
	if stored.Version() != p.Version()-1 {
		return domain.NewConflictError("payment was modified concurrently")
	}
	r.items[p.ID()] = copyPayment(p)
	return nil
}

func (r *memPayments) all() []*payment.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*payment.Payment, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, copyPayment(p))
	}
	return out
}

// --- discounts ---

type memDiscounts struct {
	mu     sync.Mutex
	byCode map[string]*discount.Discount
	uses   map[uuid.UUID]int
	usages []*discount.Usage
}

func newMemDiscounts() *memDiscounts {
	return &memDiscounts{byCode: make(map[string]*discount.Discount), uses: make(map[uuid.UUID]int)}
}

func (r *memDiscounts) current(d *discount.Discount) *discount.Discount {
	return discount.Reconstruct(d.ID(), d.Code(), d.Type(), d.Value(), d.MinAmountCents(), d.MaxDiscountCents(),
		d.MaxUses(), r.uses[d.ID()], d.ScheduleID(), d.ValidFrom(), d.ValidUntil(), d.CreatedBy(), d.CreatedAt(), d.UpdatedAt())
}

func (r *memDiscounts) Save(_ context.Context, d *discount.Discount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[d.Code()]; ok {
		return domain.NewConflictError("discount code already exists")
	}
	r.byCode[d.Code()] = d
	r.uses[d.ID()] = d.CurrentUses()
	return nil
}

func (r *memDiscounts) FindByCode(_ context.Context, code string) (*discount.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byCode[discount.NormalizeCode(code)]
	if !ok {
		return nil, domain.NewNotFoundError("discount", code)
	}
	return r.current(d), nil
}

func (r *memDiscounts) FindByCodeAndSchedule(ctx context.Context, code string, scheduleID int64) (*discount.Discount, error) {
	d, err := r.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !d.AppliesToSchedule(scheduleID) {
		return nil, domain.NewNotFoundError("discount", code)
	}
	return d, nil
}

func (r *memDiscounts) FindActive(_ context.Context) ([]*discount.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*discount.Discount
	for _, d := range r.byCode {
		if cur := r.current(d); cur.IsValidAt(testNow) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r *memDiscounts) Redeem(_ context.Context, u *discount.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.byCode {
		if d.ID() != u.DiscountID {
			continue
		}
		if d.MaxUses() > 0 && r.uses[d.ID()] >= d.MaxUses() {
			return domain.NewConflictError("discount usage limit reached")
		}
		r.uses[d.ID()]++
		r.usages = append(r.usages, u)
		return nil
	}
	return domain.NewNotFoundError("discount", u.DiscountID.String())
}

func (r *memDiscounts) ReleaseRedemption(_ context.Context, u *discount.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.usages {
		if have.ID == u.ID {
			r.usages = append(r.usages[:i], r.usages[i+1:]...)
			r.uses[u.DiscountID]--
			return nil
		}
	}
	return nil
}

func (r *memDiscounts) usesOf(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uses[r.byCode[code].ID()]
}

// --- loyalty ---

type memLoyalty struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	entries  []*loyalty.Entry
}

func newMemLoyalty() *memLoyalty {
	return &memLoyalty{balances: make(map[uuid.UUID]int64)}
}

func (r *memLoyalty) Balance(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID], nil
}

func (r *memLoyalty) Credit(_ context.Context, e *loyalty.Entry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[e.UserID] += e.Points
	e.BalanceAfter = r.balances[e.UserID]
	r.entries = append(r.entries, e)
	return e.BalanceAfter, nil
}

func (r *memLoyalty) Debit(_ context.Context, e *loyalty.Entry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	have := r.balances[e.UserID]
	if have < e.Points {
		return have, domain.NewInsufficientBalanceError(e.Points, have)
	}
	r.balances[e.UserID] = have - e.Points
	e.BalanceAfter = r.balances[e.UserID]
	r.entries = append(r.entries, e)
	return e.BalanceAfter, nil
}

func (r *memLoyalty) ListEntries(_ context.Context, userID uuid.UUID, limit int) ([]*loyalty.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*loyalty.Entry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memLoyalty) set(userID uuid.UUID, points int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] = points
}

// --- policies ---

type memPolicies struct {
	policy *cancellation.Policy
}

func (r *memPolicies) GetActive(_ context.Context) (cancellation.Policy, error) {
	if r.policy == nil {
		return cancellation.Policy{}, domain.NewNotFoundError("cancellation policy", "active")
	}
	return *r.policy, nil
}

func (r *memPolicies) ReplaceActive(_ context.Context, p cancellation.Policy) error {
	r.policy = &p
	return nil
}

// --- gateway, publisher, notifier ---

type spyGateway struct {
	*adapter.MockGateway
	mu      sync.Mutex
	charges int
	refunds []int64
}

func (g *spyGateway) Charge(ctx context.Context, amountCents int64, currency, instrument string) (string, error) {
	g.mu.Lock()
	g.charges++
	g.mu.Unlock()
	return g.MockGateway.Charge(ctx, amountCents, currency, instrument)
}

func (g *spyGateway) Refund(ctx context.Context, reference string, amountCents int64) error {
	g.mu.Lock()
	g.refunds = append(g.refunds, amountCents)
	g.mu.Unlock()
	return g.MockGateway.Refund(ctx, reference, amountCents)
}

func (g *spyGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, _, eventType, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]string
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[uuid.UUID][]string)
	}
	n.messages[userID] = append(n.messages[userID], message)
	return nil
}

var errStorage = errors.New("connection reset by peer")

// --- wiring ---

const declinedCard = "4000000000000002"

type testEnv struct {
	bookings  *memBookings
	schedules memSchedules
	payments  *memPayments
	locker    *lock.LocalLocker
	discounts *memDiscounts
	points    *memLoyalty
	policies  *memPolicies
	gateway   *spyGateway
	publisher *recordingPublisher
	notifier  *recordingNotifier

	loyaltySvc   *LoyaltyService
	discountSvc  *DiscountService
	policySvc    *PolicyService
	paymentSvc   *PaymentService
	bookingSvc   *BookingService
	orchestrator *PaymentOrchestrator

	owner   uuid.UUID
	session auth.Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	env := &testEnv{
		bookings:  newMemBookings(),
		schedules: memSchedules{5: scheduleIn(5, 72), 7: scheduleIn(7, 30)},
		payments:  newMemPayments(),
		discounts: newMemDiscounts(),
		points:    newMemLoyalty(),
		policies:  &memPolicies{},
		gateway:   &spyGateway{MockGateway: adapter.NewMockGateway(logger, declinedCard)},
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
		owner:     uuid.New(),
	}
	env.session = auth.NewSession(env.owner, auth.RoleCustomer)

	env.loyaltySvc = NewLoyaltyService(env.points, loyalty.DefaultRates(), logger)
	env.discountSvc = NewDiscountService(env.discounts, fixedClock, logger)
	env.policySvc = NewPolicyService(env.policies, cancellation.DefaultPolicy(), logger)
	env.paymentSvc = NewPaymentService(env.payments, logger)

	registry := adapter.NewRegistry(
		adapter.NewCardAdapter(env.gateway, fixedClock, logger),
		adapter.NewCashAdapter(logger),
		adapter.NewBankTransferAdapter(env.gateway, logger),
		adapter.NewMobileWalletAdapter(4, logger),
		adapter.NewLoyaltyWalletAdapter(env.loyaltySvc, loyalty.DefaultRates(), logger),
	)
	env.locker = lock.NewLocalLocker()
	sagaSvc := saga.NewPaymentSagaService(env.discountSvc, env.payments, env.bookings, env.loyaltySvc, logger)

	env.orchestrator = NewPaymentOrchestrator(env.bookings, env.discountSvc, registry, sagaSvc, env.locker,
		time.Second, env.publisher, env.notifier, logger)
	env.bookingSvc = NewBookingService(env.bookings, env.schedules, env.payments, env.policySvc, registry,
		env.locker, 200*time.Millisecond, env.publisher, env.notifier, time.UTC, fixedClock, logger)
	return env
}

// newBooking stores a PENDING booking of two seats at 50.00 on scheduleID: 100.00 total.
func (e *testEnv) newBooking(t *testing.T, scheduleID int64) *booking.Booking {
	t.Helper()
	b, err := booking.NewBooking(e.owner, scheduleID, []booking.Passenger{
		{Name: "Ayesha Khan", Age: 34, SeatNumber: "C1"},
		{Name: "Bilal Khan", Age: 36, SeatNumber: "C2", BringPet: true},
	}, 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, e.bookings.Save(context.Background(), b))
	return b
}

func (e *testEnv) addDiscount(t *testing.T, code string, typ discount.Type, value int64, maxUses int, scheduleID *int64) {
	t.Helper()
	d, err := discount.NewDiscount(code, typ, value, 0, 0, maxUses, scheduleID,
		testNow.Add(-24*time.Hour), testNow.Add(30*24*time.Hour), uuid.New())
	require.NoError(t, err)
	require.NoError(t, e.discounts.Save(context.Background(), d))
}

func validCardDetails() map[string]string {
	return map[string]string{
		adapter.CardNumber: "4111 1111 1111 1111",
		adapter.CardHolder: "Ayesha Khan",
		adapter.CardExpiry: "12/28",
		adapter.CardCVV:    "123",
	}
}
