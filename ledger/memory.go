// Package ledger provides durable stores for cost records.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ineyio/tierrouter"
)

// MemoryLedger is an in-memory Ledger. Useful for tests and single-process
// tools that do not need records to survive a restart.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string][]tierrouter.CostRecord // user id → records
	seen    map[string]bool                    // record id dedup
}

var _ tierrouter.Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string][]tierrouter.CostRecord),
		seen:    make(map[string]bool),
	}
}

// Append stores rec. A record id already stored is ignored.
func (l *MemoryLedger) Append(_ context.Context, rec tierrouter.CostRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seen[rec.ID] {
		return nil
	}
	l.seen[rec.ID] = true
	l.records[rec.UserID] = append(l.records[rec.UserID], rec)
	return nil
}

// Records returns a user's records at or after since, oldest first.
func (l *MemoryLedger) Records(_ context.Context, userID string, since time.Time) ([]tierrouter.CostRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []tierrouter.CostRecord
	for _, r := range l.records[userID] {
		if !since.IsZero() && r.Timestamp.Before(since) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Total returns the sum of a user's record costs.
func (l *MemoryLedger) Total(_ context.Context, userID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, r := range l.records[userID] {
		total = total.Add(r.Cost)
	}
	return total, nil
}

// Users returns every user with at least one record, sorted.
func (l *MemoryLedger) Users(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	users := make([]string, 0, len(l.records))
	for u := range l.records {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}
