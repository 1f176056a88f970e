package adapter

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// BankIBAN is the detail key for the payer's IBAN.
const BankIBAN = "iban"

// BankTransferAdapter collects payment by IBAN transfer through a Gateway.
type BankTransferAdapter struct {
	gateway Gateway
	logger  *zap.Logger
}

func NewBankTransferAdapter(gateway Gateway, logger *zap.Logger) *BankTransferAdapter {
	return &BankTransferAdapter{gateway: gateway, logger: logger}
}

func (a *BankTransferAdapter) MethodName() string { return "Bank Transfer" }
func (a *BankTransferAdapter) Family() Family     { return FamilyBankTransfer }

// ValidateDetails requires a 15 to 34 character alphanumeric IBAN.
func (a *BankTransferAdapter) ValidateDetails(_ context.Context, details map[string]string) string {
	iban := normalizeIBAN(details[BankIBAN])
	if iban == "" {
		return "IBAN is required"
	}
	if len(iban) < 15 || len(iban) > 34 || !isAlphanumeric(iban) {
		return "IBAN must be 15 to 34 letters and digits"
	}
	return ""
}

func (a *BankTransferAdapter) ProcessPayment(ctx context.Context, amountCents int64, details map[string]string) (string, bool) {
	if msg := a.ValidateDetails(ctx, details); msg != "" {
		return "", false
	}
	ref, err := a.gateway.Charge(ctx, amountCents, details[DetailCurrency], normalizeIBAN(details[BankIBAN]))
	if err != nil {
		a.logger.Warn("bank transfer failed", zap.Int64("amount_cents", amountCents), zap.Error(err))
		return "", false
	}
	return ref, true
}

func (a *BankTransferAdapter) RefundPayment(ctx context.Context, reference string, amountCents int64, _ map[string]string) error {
	return a.gateway.Refund(ctx, reference, amountCents)
}

func normalizeIBAN(s string) string {
	return strings.ToUpper(stripSpaces(s))
}
