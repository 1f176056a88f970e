package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/domain/cancellation"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/domain"
)

// PolicyRequest replaces the active cancellation policy.
type PolicyRequest struct {
	HoursBeforeDeparture    int                       `json:"hours_before_departure"`
	MinHoursBeforeDeparture int                       `json:"min_hours_before_departure"`
	RefundTiers             []cancellation.RefundTier `json:"refund_tiers" binding:"required,min=1"`
}

// PolicyDTO is the API representation of the active policy.
type PolicyDTO struct {
	HoursBeforeDeparture    int                       `json:"hours_before_departure"`
	MinHoursBeforeDeparture int                       `json:"min_hours_before_departure"`
	RefundTiers             []cancellation.RefundTier `json:"refund_tiers"`
	Source                  string                    `json:"source"`
}

// PolicyService serves the single active cancellation policy.
type PolicyService struct {
	repo     cancellation.PolicyRepository
	fallback cancellation.Policy
	logger   *zap.Logger
}

// NewPolicyService creates a PolicyService that answers with fallback while storage has no policy.
func NewPolicyService(repo cancellation.PolicyRepository, fallback cancellation.Policy, logger *zap.Logger) *PolicyService {
	return &PolicyService{repo: repo, fallback: fallback, logger: logger}
}

// Active returns the stored policy, or the configured default when none is stored.
func (s *PolicyService) Active(ctx context.Context) (cancellation.Policy, error) {
	p, _, err := s.active(ctx)
	return p, err
}

func (s *PolicyService) active(ctx context.Context) (cancellation.Policy, string, error) {
	p, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.fallback, "default", nil
		}
		return cancellation.Policy{}, "", err
	}
	return p, "stored", nil
}

// GetActivePolicy returns the active policy for display.
func (s *PolicyService) GetActivePolicy(ctx context.Context) (*PolicyDTO, error) {
	p, source, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	return toPolicyDTO(p, source), nil
}

// Replace stores a new active policy (admin only).
func (s *PolicyService) Replace(ctx context.Context, session auth.Session, req PolicyRequest) (*PolicyDTO, error) {
	if !session.Can(auth.CapManagePolicies) {
		return nil, domain.NewForbiddenError("only administrators can change the cancellation policy")
	}

	p, err := cancellation.NewPolicy(req.HoursBeforeDeparture, req.MinHoursBeforeDeparture, req.RefundTiers)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.repo.ReplaceActive(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("cancellation policy replaced",
		zap.String("by", session.UserID.String()),
		zap.Int("hours_before_departure", p.HoursBeforeDeparture()),
		zap.Int("min_hours_before_departure", p.MinHoursBeforeDeparture()),
		zap.Int("tiers", len(p.Tiers())),
	)
	return toPolicyDTO(p, "stored"), nil
}

func toPolicyDTO(p cancellation.Policy, source string) *PolicyDTO {
	return &PolicyDTO{
		HoursBeforeDeparture:    p.HoursBeforeDeparture(),
		MinHoursBeforeDeparture: p.MinHoursBeforeDeparture(),
		RefundTiers:             p.Tiers(),
		Source:                  source,
	}
}
