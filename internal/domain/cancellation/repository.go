package cancellation

import "context"

// PolicyRepository stores the single active cancellation policy.
type PolicyRepository interface {
	// GetActive returns the active policy, or a not-found error when none is stored.
	GetActive(ctx context.Context) (Policy, error)

	// ReplaceActive deactivates the current policy and stores p as active.
	ReplaceActive(ctx context.Context, p Policy) error
}
