package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CashAdapter records payment collected at a station counter.
type CashAdapter struct {
	logger *zap.Logger
}

func NewCashAdapter(logger *zap.Logger) *CashAdapter {
	return &CashAdapter{logger: logger}
}

func (a *CashAdapter) MethodName() string { return "Cash" }
func (a *CashAdapter) Family() Family     { return FamilyCash }

// ValidateDetails needs nothing beyond a non-negative amount.
func (a *CashAdapter) ValidateDetails(_ context.Context, details map[string]string) string {
	if _, ok := amountFrom(details); !ok {
		return "Payment amount is missing"
	}
	return ""
}

func (a *CashAdapter) ProcessPayment(_ context.Context, amountCents int64, details map[string]string) (string, bool) {
	if amountCents < 0 {
		return "", false
	}
	ref := fmt.Sprintf("CASH-%s", uuid.New().String()[:8])
	a.logger.Info("cash payment recorded",
		zap.String("reference", ref),
		zap.Int64("amount_cents", amountCents),
		zap.String("booking_id", details[DetailBookingID]),
	)
	return ref, true
}
