package adapter

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Card detail keys.
const (
	CardNumber = "card_number"
	CardHolder = "card_holder"
	CardExpiry = "expiry"
	CardCVV    = "cvv"
)

// CardAdapter charges credit and debit cards through a Gateway.
type CardAdapter struct {
	gateway Gateway
	now     func() time.Time
	logger  *zap.Logger
}

// NewCardAdapter creates a card adapter. now may be nil.
func NewCardAdapter(gateway Gateway, now func() time.Time, logger *zap.Logger) *CardAdapter {
	if now == nil {
		now = time.Now
	}
	return &CardAdapter{gateway: gateway, now: now, logger: logger}
}

func (a *CardAdapter) MethodName() string { return "Credit/Debit Card" }
func (a *CardAdapter) Family() Family     { return FamilyCard }

// ValidateDetails checks number, holder, MM/YY expiry and CVV, in that order.
func (a *CardAdapter) ValidateDetails(_ context.Context, details map[string]string) string {
	number := stripSpaces(details[CardNumber])
	if number == "" {
		return "Card number is required"
	}
	if !isDigits(number) || len(number) < 13 || len(number) > 16 {
		return "Card number must be 13 to 16 digits"
	}
	if strings.TrimSpace(details[CardHolder]) == "" {
		return "Cardholder name is required"
	}

	month, year, ok := parseExpiry(details[CardExpiry])
	if !ok {
		return "Expiry date must be in MM/YY format"
	}
	now := a.now()
	// a card is valid through the last day of its expiry month
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return "Card has expired"
	}

	cvv := strings.TrimSpace(details[CardCVV])
	if len(cvv) != 3 || !isDigits(cvv) {
		return "CVV must be exactly 3 digits"
	}
	return ""
}

// ProcessPayment charges the card. Invalid details or a gateway decline return false.
func (a *CardAdapter) ProcessPayment(ctx context.Context, amountCents int64, details map[string]string) (string, bool) {
	if msg := a.ValidateDetails(ctx, details); msg != "" {
		return "", false
	}
	ref, err := a.gateway.Charge(ctx, amountCents, details[DetailCurrency], stripSpaces(details[CardNumber]))
	if err != nil {
		a.logger.Warn("card charge failed", zap.Int64("amount_cents", amountCents), zap.Error(err))
		return "", false
	}
	return ref, true
}

// RefundPayment returns a card charge through the gateway.
func (a *CardAdapter) RefundPayment(ctx context.Context, reference string, amountCents int64, _ map[string]string) error {
	return a.gateway.Refund(ctx, reference, amountCents)
}

// parseExpiry reads "MM/YY" into a month and a four-digit year.
func parseExpiry(s string) (month, year int, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != '/' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, 0, false
	}
	month = int(s[0]-'0')*10 + int(s[1]-'0')
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	year = 2000 + int(s[3]-'0')*10 + int(s[4]-'0')
	return month, year, true
}
