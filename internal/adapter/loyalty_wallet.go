package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/domain/loyalty"
)

// PointsWallet is the slice of the loyalty ledger the wallet adapter needs.
type PointsWallet interface {
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, points int64, bookingID *uuid.UUID) error
	Restore(ctx context.Context, userID uuid.UUID, points int64, bookingID *uuid.UUID) error
}

// LoyaltyWalletAdapter pays with loyalty points.
type LoyaltyWalletAdapter struct {
	wallet PointsWallet
	rates  loyalty.Rates
	logger *zap.Logger
}

func NewLoyaltyWalletAdapter(wallet PointsWallet, rates loyalty.Rates, logger *zap.Logger) *LoyaltyWalletAdapter {
	return &LoyaltyWalletAdapter{wallet: wallet, rates: rates, logger: logger}
}

func (a *LoyaltyWalletAdapter) MethodName() string { return "Loyalty Points Wallet" }
func (a *LoyaltyWalletAdapter) Family() Family     { return FamilyLoyaltyWallet }

// ValidateDetails requires an authenticated user whose balance covers the amount.
func (a *LoyaltyWalletAdapter) ValidateDetails(ctx context.Context, details map[string]string) string {
	userID, err := uuid.Parse(details[DetailUserID])
	if err != nil {
		return "Please sign in to pay with loyalty points"
	}
	amount, ok := amountFrom(details)
	if !ok {
		return "Payment amount is missing"
	}

	required := a.rates.PointsToCover(amount)
	available, err := a.wallet.Balance(ctx, userID)
	if err != nil {
		a.logger.Error("failed to read loyalty balance", zap.String("user_id", userID.String()), zap.Error(err))
		return "Unable to check your loyalty balance, please try again"
	}
	if available < required {
		return fmt.Sprintf("Insufficient loyalty points. Required: %d, Available: %d", required, available)
	}
	return ""
}

// ProcessPayment debits the points atomically. A lost race on the balance returns false
// with nothing debited.
func (a *LoyaltyWalletAdapter) ProcessPayment(ctx context.Context, amountCents int64, details map[string]string) (string, bool) {
	userID, err := uuid.Parse(details[DetailUserID])
	if err != nil {
		return "", false
	}
	points := a.rates.PointsToCover(amountCents)
	if err := a.wallet.Debit(ctx, userID, points, bookingIDFrom(details)); err != nil {
		a.logger.Warn("loyalty wallet debit failed",
			zap.String("user_id", userID.String()),
			zap.Int64("points", points),
			zap.Error(err),
		)
		return "", false
	}
	return fmt.Sprintf("LP-%d", points), true
}

// RefundPayment restores the points a wallet payment consumed.
func (a *LoyaltyWalletAdapter) RefundPayment(ctx context.Context, _ string, amountCents int64, details map[string]string) error {
	userID, err := uuid.Parse(details[DetailUserID])
	if err != nil {
		return fmt.Errorf("refund loyalty payment: %w", err)
	}
	return a.wallet.Restore(ctx, userID, a.rates.PointsToCover(amountCents), bookingIDFrom(details))
}

func bookingIDFrom(details map[string]string) *uuid.UUID {
	id, err := uuid.Parse(details[DetailBookingID])
	if err != nil {
		return nil
	}
	return &id
}
