package adapter

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/domain/loyalty"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func validCard() map[string]string {
	return map[string]string{
		CardNumber:        "4111 1111 1111 1111",
		CardHolder:        "Ayesha Khan",
		CardExpiry:        "12/27",
		CardCVV:           "123",
		DetailAmountCents: "10000",
		DetailCurrency:    "USD",
	}
}

func TestCardAdapter_ValidateDetails(t *testing.T) {
	a := NewCardAdapter(NewMockGateway(zap.NewNop()), fixedNow, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name  string
		patch map[string]string
		want  string
	}{
		{"valid", nil, ""},
		{"missing number", map[string]string{CardNumber: ""}, "Card number is required"},
		{"short number", map[string]string{CardNumber: "4111"}, "Card number must be 13 to 16 digits"},
		{"letters in number", map[string]string{CardNumber: "4111x11111111111"}, "Card number must be 13 to 16 digits"},
		{"missing holder", map[string]string{CardHolder: "  "}, "Cardholder name is required"},
		{"bad expiry", map[string]string{CardExpiry: "2027-12"}, "Expiry date must be in MM/YY format"},
		{"expired", map[string]string{CardExpiry: "02/26"}, "Card has expired"},
		{"current month still valid", map[string]string{CardExpiry: "03/26"}, ""},
		{"short cvv", map[string]string{CardCVV: "12"}, "CVV must be exactly 3 digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validCard()
			for k, v := range tt.patch {
				d[k] = v
			}
			assert.Equal(t, tt.want, a.ValidateDetails(ctx, d))
		})
	}
}

func TestCardAdapter_ProcessPayment(t *testing.T) {
	gw := NewMockGateway(zap.NewNop(), "4000000000000002")
	a := NewCardAdapter(gw, fixedNow, zap.NewNop())
	ctx := context.Background()

	ref, ok := a.ProcessPayment(ctx, 10000, validCard())
	assert.True(t, ok)
	assert.NotEmpty(t, ref)

	declined := validCard()
	declined[CardNumber] = "4000000000000002"
	ref, ok = a.ProcessPayment(ctx, 10000, declined)
	assert.False(t, ok)
	assert.Empty(t, ref)
}

func TestBankTransferAdapter_ValidateDetails(t *testing.T) {
	a := NewBankTransferAdapter(NewMockGateway(zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "", a.ValidateDetails(ctx, map[string]string{BankIBAN: "PK36 SCBL 0000 0011 2345 6702"}))
	assert.Equal(t, "IBAN is required", a.ValidateDetails(ctx, map[string]string{}))
	assert.Equal(t, "IBAN must be 15 to 34 letters and digits", a.ValidateDetails(ctx, map[string]string{BankIBAN: "PK36SCBL"}))
	assert.Equal(t, "IBAN must be 15 to 34 letters and digits", a.ValidateDetails(ctx, map[string]string{BankIBAN: "PK36SCBL0000001123#"}))
}

func TestMobileWalletAdapter_ValidateDetails(t *testing.T) {
	a := NewMobileWalletAdapter(0, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "", a.ValidateDetails(ctx, map[string]string{WalletNumber: "+92 300 1234567", WalletPIN: "1234"}))
	assert.Equal(t, "Mobile wallet number is required", a.ValidateDetails(ctx, map[string]string{WalletPIN: "1234"}))
	assert.Equal(t, "Mobile wallet number must contain digits only", a.ValidateDetails(ctx, map[string]string{WalletNumber: "03OO", WalletPIN: "1234"}))
	assert.Equal(t, "PIN must be exactly 4 digits", a.ValidateDetails(ctx, map[string]string{WalletNumber: "03001234567", WalletPIN: "12345"}))

	six := NewMobileWalletAdapter(6, zap.NewNop())
	assert.Equal(t, "PIN must be exactly 6 digits", six.ValidateDetails(ctx, map[string]string{WalletNumber: "03001234567", WalletPIN: "1234"}))
}

func TestCashAdapter(t *testing.T) {
	a := NewCashAdapter(zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "", a.ValidateDetails(ctx, map[string]string{DetailAmountCents: "0"}))
	ref, ok := a.ProcessPayment(ctx, 0, nil)
	assert.True(t, ok)
	assert.Contains(t, ref, "CASH-")
}

type fakeWallet struct {
	balances map[uuid.UUID]int64
	failNext bool
}

func (w *fakeWallet) Balance(_ context.Context, userID uuid.UUID) (int64, error) {
	return w.balances[userID], nil
}

func (w *fakeWallet) Debit(_ context.Context, userID uuid.UUID, points int64, _ *uuid.UUID) error {
	if w.failNext || w.balances[userID] < points {
		return errors.New("insufficient")
	}
	w.balances[userID] -= points
	return nil
}

func (w *fakeWallet) Restore(_ context.Context, userID uuid.UUID, points int64, _ *uuid.UUID) error {
	w.balances[userID] += points
	return nil
}

func TestLoyaltyWalletAdapter(t *testing.T) {
	userID := uuid.New()
	wallet := &fakeWallet{balances: map[uuid.UUID]int64{userID: 50}}
	a := NewLoyaltyWalletAdapter(wallet, loyalty.DefaultRates(), zap.NewNop())
	ctx := context.Background()

	details := map[string]string{
		DetailUserID:      userID.String(),
		DetailAmountCents: strconv.FormatInt(10000, 10),
	}

	t.Run("insufficient balance", func(t *testing.T) {
		assert.Equal(t, "Insufficient loyalty points. Required: 100, Available: 50", a.ValidateDetails(ctx, details))
	})

	t.Run("anonymous", func(t *testing.T) {
		assert.Equal(t, "Please sign in to pay with loyalty points",
			a.ValidateDetails(ctx, map[string]string{DetailAmountCents: "100"}))
	})

	t.Run("debit and restore", func(t *testing.T) {
		wallet.balances[userID] = 150
		require.Equal(t, "", a.ValidateDetails(ctx, details))

		ref, ok := a.ProcessPayment(ctx, 10000, details)
		require.True(t, ok)
		assert.Equal(t, "LP-100", ref)
		assert.Equal(t, int64(50), wallet.balances[userID])

		require.NoError(t, a.RefundPayment(ctx, ref, 10000, details))
		assert.Equal(t, int64(150), wallet.balances[userID])
	})

	t.Run("lost race debits nothing", func(t *testing.T) {
		wallet.failNext = true
		defer func() { wallet.failNext = false }()

		_, ok := a.ProcessPayment(ctx, 10000, details)
		assert.False(t, ok)
		assert.Equal(t, int64(150), wallet.balances[userID])
	})
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry(NewCashAdapter(zap.NewNop()), NewMobileWalletAdapter(4, zap.NewNop()))

	a, err := r.Lookup(" CASH ")
	require.NoError(t, err)
	assert.Equal(t, FamilyCash, a.Family())

	_, err = r.Lookup("crypto")
	assert.Error(t, err)

	assert.Equal(t, []Family{FamilyCash, FamilyMobileWallet}, r.Families())
}
