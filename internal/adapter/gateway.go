package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the anti-corruption boundary towards an external payment processor.
// Card and bank transfer payments go through it; a real processor client can be
// substituted without touching the adapters.
type Gateway interface {
	// Charge collects amountCents from the instrument and returns the processor reference.
	Charge(ctx context.Context, amountCents int64, currency, instrument string) (reference string, err error)

	// Refund returns amountCents of a previous charge.
	Refund(ctx context.Context, reference string, amountCents int64) error
}

// ErrDeclined is returned by a gateway that refused the charge.
var ErrDeclined = errors.New("payment declined by gateway")

// MockGateway is a development/testing implementation of Gateway.
// It approves everything except instruments listed as declined.
type MockGateway struct {
	declined map[string]bool
	logger   *zap.Logger
}

// NewMockGateway creates a mock gateway. Instruments in declined are refused.
func NewMockGateway(logger *zap.Logger, declined ...string) *MockGateway {
	d := make(map[string]bool, len(declined))
	for _, inst := range declined {
		d[inst] = true
	}
	return &MockGateway{declined: d, logger: logger}
}

// Charge simulates a charge and returns a mock reference.
func (m *MockGateway) Charge(ctx context.Context, amountCents int64, currency, instrument string) (string, error) {
	if m.declined[instrument] {
		m.logger.Info("[MOCK GATEWAY] charge declined",
			zap.String("instrument", mask(instrument)),
			zap.Int64("amount_cents", amountCents),
		)
		return "", ErrDeclined
	}

	reference := fmt.Sprintf("gw_mock_%s", uuid.New().String()[:8])
	m.logger.Info("[MOCK GATEWAY] charge captured",
		zap.String("reference", reference),
		zap.Int64("amount_cents", amountCents),
		zap.String("currency", currency),
		zap.String("instrument", mask(instrument)),
	)
	return reference, nil
}

// Refund simulates refunding a charge.
func (m *MockGateway) Refund(ctx context.Context, reference string, amountCents int64) error {
	m.logger.Info("[MOCK GATEWAY] refund created",
		zap.String("reference", reference),
		zap.Int64("amount_cents", amountCents),
	)
	return nil
}

// mask keeps only the last four characters of an instrument for logs.
func mask(instrument string) string {
	if len(instrument) <= 4 {
		return instrument
	}
	return strings.Repeat("*", len(instrument)-4) + instrument[len(instrument)-4:]
}
