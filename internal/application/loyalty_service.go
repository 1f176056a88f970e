package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/domain/loyalty"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// LoyaltyBalanceDTO is the API response for a user's points.
type LoyaltyBalanceDTO struct {
	UserID        uuid.UUID        `json:"user_id"`
	Points        int64            `json:"points"`
	ValueCents    int64            `json:"value_cents"`
	RecentEntries []LedgerEntryDTO `json:"recent_entries"`
}

// LedgerEntryDTO is one ledger row.
type LedgerEntryDTO struct {
	ID           uuid.UUID  `json:"id"`
	Type         string     `json:"type"`
	Points       int64      `json:"points"`
	BalanceAfter int64      `json:"balance_after"`
	BookingID    *uuid.UUID `json:"booking_id,omitempty"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LoyaltyService is the only writer of point balances. Every change goes through
// the repository's atomic credit/debit, never a read-then-write.
type LoyaltyService struct {
	repo   loyalty.Repository
	rates  loyalty.Rates
	logger *zap.Logger
}

// NewLoyaltyService creates a new LoyaltyService.
func NewLoyaltyService(repo loyalty.Repository, rates loyalty.Rates, logger *zap.Logger) *LoyaltyService {
	return &LoyaltyService{repo: repo, rates: rates, logger: logger}
}

// Rates returns the configured conversion rates.
func (s *LoyaltyService) Rates() loyalty.Rates { return s.rates }

// Grant credits the points earned on paidCents and returns them. Nothing is written
// when the payment earns no points.
func (s *LoyaltyService) Grant(ctx context.Context, userID uuid.UUID, paidCents int64, bookingID uuid.UUID) (int64, error) {
	points := s.rates.PointsEarned(paidCents)
	if points <= 0 {
		return 0, nil
	}

	entry := loyalty.NewEntry(userID, loyalty.EntryEarn, points, &bookingID,
		fmt.Sprintf("Earned on booking %s", bookingID))
	balance, err := s.repo.Credit(ctx, entry)
	if err != nil {
		return 0, err
	}

	s.logger.Info("loyalty points granted",
		zap.String("user_id", userID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.Int64("points", points),
		zap.Int64("balance", balance),
	)
	return points, nil
}

// Revoke withdraws points granted by a payment that was rolled back.
func (s *LoyaltyService) Revoke(ctx context.Context, userID uuid.UUID, points int64, bookingID uuid.UUID) error {
	if points <= 0 {
		return nil
	}
	entry := loyalty.NewEntry(userID, loyalty.EntryReversal, points, &bookingID,
		fmt.Sprintf("Reversed for booking %s", bookingID))
	if _, err := s.repo.Debit(ctx, entry); err != nil {
		return err
	}
	s.logger.Info("loyalty points revoked",
		zap.String("user_id", userID.String()),
		zap.Int64("points", points),
	)
	return nil
}

// Debit spends points. It fails with an insufficient-balance error, changing
// nothing, when the balance does not cover them.
func (s *LoyaltyService) Debit(ctx context.Context, userID uuid.UUID, points int64, bookingID *uuid.UUID) error {
	if points <= 0 {
		return nil
	}
	entry := loyalty.NewEntry(userID, loyalty.EntrySpend, points, bookingID, "Paid with loyalty points")
	balance, err := s.repo.Debit(ctx, entry)
	if err != nil {
		return err
	}
	s.logger.Info("loyalty points spent",
		zap.String("user_id", userID.String()),
		zap.Int64("points", points),
		zap.Int64("balance", balance),
	)
	return nil
}

// Restore returns points spent on a wallet payment that was reversed.
func (s *LoyaltyService) Restore(ctx context.Context, userID uuid.UUID, points int64, bookingID *uuid.UUID) error {
	if points <= 0 {
		return nil
	}
	entry := loyalty.NewEntry(userID, loyalty.EntryRefund, points, bookingID, "Loyalty payment returned")
	if _, err := s.repo.Credit(ctx, entry); err != nil {
		return err
	}
	s.logger.Info("loyalty points restored",
		zap.String("user_id", userID.String()),
		zap.Int64("points", points),
	)
	return nil
}

// Balance returns the user's current points.
func (s *LoyaltyService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.Balance(ctx, userID)
}

// GetBalance returns the caller's balance with recent ledger entries.
func (s *LoyaltyService) GetBalance(ctx context.Context, session auth.Session, limit int) (*LoyaltyBalanceDTO, error) {
	if !session.Authenticated {
		return nil, domain.NewUnauthorizedError("sign in to view loyalty points")
	}
	points, err := s.repo.Balance(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, session.UserID, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LedgerEntryDTO{
			ID:           e.ID,
			Type:         string(e.Type),
			Points:       e.Points,
			BalanceAfter: e.BalanceAfter,
			BookingID:    e.BookingID,
			Description:  e.Description,
			CreatedAt:    e.CreatedAt,
		}
	}
	return &LoyaltyBalanceDTO{
		UserID:        session.UserID,
		Points:        points,
		ValueCents:    points * s.rates.PointValueCents,
		RecentEntries: dtos,
	}, nil
}
