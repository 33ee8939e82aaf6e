package tierrouter

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

var tokensPerMillion = decimal.NewFromInt(1_000_000)

// Accountant computes request costs and keeps a running total per user for
// the lifetime of the process. Writes for one user are serialised; TotalFor
// never takes a lock.
type Accountant struct {
	accounts sync.Map // user id → *sessionAccount
	registry *Registry
	now      func() time.Time
}

type sessionAccount struct {
	mu      sync.Mutex
	records []CostRecord
	total   atomic.Pointer[decimal.Decimal]
}

// AccountantOption configures an Accountant.
type AccountantOption func(*Accountant)

// WithBaseline makes the accountant price every record against the
// provider's premium binding in reg, for savings reporting.
func WithBaseline(reg *Registry) AccountantOption {
	return func(a *Accountant) { a.registry = reg }
}

// NewAccountant creates an empty Accountant.
func NewAccountant(opts ...AccountantOption) *Accountant {
	a := &Accountant{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Estimate returns the dollar cost of a call:
// in/1e6 × input price + out/1e6 × output price.
func (a *Accountant) Estimate(b ModelBinding, inputTokens, outputTokens int64) (decimal.Decimal, error) {
	return estimate(b, inputTokens, outputTokens)
}

func estimate(b ModelBinding, inputTokens, outputTokens int64) (decimal.Decimal, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return decimal.Zero, &TokenCountError{Input: inputTokens, Output: outputTokens}
	}
	in := decimal.NewFromInt(inputTokens).Mul(b.InputPrice)
	out := decimal.NewFromInt(outputTokens).Mul(b.OutputPrice)
	return in.Add(out).Div(tokensPerMillion), nil
}

// Record appends a CostRecord to the user's account and returns it.
// Negative token counts fail and append nothing.
func (a *Accountant) Record(userID string, d RoutingDecision, inputTokens, outputTokens int64) (CostRecord, error) {
	return a.record(userID, d, inputTokens, outputTokens, false)
}

func (a *Accountant) record(userID string, d RoutingDecision, inputTokens, outputTokens int64, estimated bool) (CostRecord, error) {
	cost, err := estimate(d.Binding, inputTokens, outputTokens)
	if err != nil {
		return CostRecord{}, err
	}

	baseline := cost
	if a.registry != nil {
		if pb, ok := a.registry.Binding(d.Provider, TierPremium); ok {
			if c, err := estimate(pb, inputTokens, outputTokens); err == nil && c.GreaterThan(cost) {
				baseline = c
			}
		}
	}

	now := a.now().UTC()
	rec := CostRecord{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:        userID,
		Timestamp:     now,
		Provider:      d.Provider,
		Tier:          d.Tier,
		RequestedTier: d.RequestedTier,
		Model:         d.Binding.Model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		Cost:          cost,
		Baseline:      baseline,
		Fallback:      d.Reason == ReasonFallback,
		Estimated:     estimated,
	}

	acct := a.account(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	acct.records = append(acct.records, rec)
	total := acct.currentTotal().Add(cost)
	acct.total.Store(&total)

	return rec, nil
}

// TotalFor returns the user's running total. Unknown users total zero.
func (a *Accountant) TotalFor(userID string) decimal.Decimal {
	v, ok := a.accounts.Load(userID)
	if !ok {
		return decimal.Zero
	}
	return v.(*sessionAccount).currentTotal()
}

// Records returns a copy of the user's records in append order.
func (a *Accountant) Records(userID string) []CostRecord {
	v, ok := a.accounts.Load(userID)
	if !ok {
		return nil
	}
	acct := v.(*sessionAccount)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	out := make([]CostRecord, len(acct.records))
	copy(out, acct.records)
	return out
}

// Users returns the ids of users with an account, sorted.
func (a *Accountant) Users() []string {
	var users []string
	a.accounts.Range(func(k, _ any) bool {
		users = append(users, k.(string))
		return true
	})
	sort.Strings(users)
	return users
}

// Summary aggregates the user's records.
func (a *Accountant) Summary(userID string) Summary {
	s := Summarize(a.Records(userID))
	s.UserID = userID
	return s
}

func (a *Accountant) account(userID string) *sessionAccount {
	if v, ok := a.accounts.Load(userID); ok {
		return v.(*sessionAccount)
	}
	v, _ := a.accounts.LoadOrStore(userID, &sessionAccount{})
	return v.(*sessionAccount)
}

func (s *sessionAccount) currentTotal() decimal.Decimal {
	if t := s.total.Load(); t != nil {
		return *t
	}
	return decimal.Zero
}
