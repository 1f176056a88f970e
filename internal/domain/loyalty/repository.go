package loyalty

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the single source of truth for point balances. Both mutations are
// atomic read-modify-writes at the storage layer.
type Repository interface {
	// Balance returns the current balance; users without an account have 0.
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)

	// Credit adds e.Points and appends e with its BalanceAfter set.
	Credit(ctx context.Context, e *Entry) (int64, error)

	// Debit subtracts e.Points only if the balance covers it, returning an
	// insufficient-balance error otherwise with nothing changed.
	Debit(ctx context.Context, e *Entry) (int64, error)

	// ListEntries returns the newest entries first.
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*Entry, error)
}
