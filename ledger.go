package tierrouter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger durably stores cost records beyond the process lifetime.
type Ledger interface {
	// Append stores a record. Appending a record id twice is a no-op.
	Append(ctx context.Context, rec CostRecord) error

	// Records returns a user's records with Timestamp >= since, oldest first.
	// A zero since returns all records.
	Records(ctx context.Context, userID string, since time.Time) ([]CostRecord, error)

	// Total returns the sum of a user's record costs.
	Total(ctx context.Context, userID string) (decimal.Decimal, error)
}
