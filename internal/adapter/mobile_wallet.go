package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mobile wallet detail keys.
const (
	WalletNumber = "mobile_number"
	WalletPIN    = "pin"
)

// MobileWalletAdapter simulates JazzCash-style mobile money: a phone number plus a PIN.
type MobileWalletAdapter struct {
	pinLength int
	logger    *zap.Logger
}

// NewMobileWalletAdapter creates the adapter; pinLength <= 0 defaults to 4.
func NewMobileWalletAdapter(pinLength int, logger *zap.Logger) *MobileWalletAdapter {
	if pinLength <= 0 {
		pinLength = 4
	}
	return &MobileWalletAdapter{pinLength: pinLength, logger: logger}
}

func (a *MobileWalletAdapter) MethodName() string { return "JazzCash" }
func (a *MobileWalletAdapter) Family() Family     { return FamilyMobileWallet }

func (a *MobileWalletAdapter) ValidateDetails(_ context.Context, details map[string]string) string {
	number := strings.TrimPrefix(stripSpaces(details[WalletNumber]), "+")
	if number == "" {
		return "Mobile wallet number is required"
	}
	if !isDigits(number) {
		return "Mobile wallet number must contain digits only"
	}
	pin := strings.TrimSpace(details[WalletPIN])
	if len(pin) != a.pinLength || !isDigits(pin) {
		return fmt.Sprintf("PIN must be exactly %d digits", a.pinLength)
	}
	return ""
}

func (a *MobileWalletAdapter) ProcessPayment(ctx context.Context, amountCents int64, details map[string]string) (string, bool) {
	if msg := a.ValidateDetails(ctx, details); msg != "" {
		return "", false
	}
	ref := fmt.Sprintf("MW-%s", uuid.New().String()[:8])
	a.logger.Info("mobile wallet payment simulated",
		zap.String("reference", ref),
		zap.Int64("amount_cents", amountCents),
	)
	return ref, true
}
