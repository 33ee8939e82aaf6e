package tierrouter

import "github.com/shopspring/decimal"

// Bucket aggregates records sharing a tier or provider.
type Bucket struct {
	Requests int
	Tokens   int64
	Cost     decimal.Decimal
}

// Summary aggregates a set of cost records.
type Summary struct {
	UserID       string
	Requests     int
	InputTokens  int64
	OutputTokens int64
	Total        decimal.Decimal

	// Baseline is what the same calls would have cost at the premium tier.
	Baseline       decimal.Decimal
	Savings        decimal.Decimal
	SavingsPercent decimal.Decimal

	Fallbacks  int
	Estimated  int
	ByTier     map[Tier]Bucket
	ByProvider map[Provider]Bucket
}

// Summarize aggregates records.
func Summarize(records []CostRecord) Summary {
	s := Summary{
		ByTier:     make(map[Tier]Bucket),
		ByProvider: make(map[Provider]Bucket),
	}
	for _, r := range records {
		s.Requests++
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.Total = s.Total.Add(r.Cost)
		s.Baseline = s.Baseline.Add(r.Baseline)
		if r.Fallback {
			s.Fallbacks++
		}
		if r.Estimated {
			s.Estimated++
		}

		tokens := r.InputTokens + r.OutputTokens
		s.ByTier[r.Tier] = addToBucket(s.ByTier[r.Tier], tokens, r.Cost)
		s.ByProvider[r.Provider] = addToBucket(s.ByProvider[r.Provider], tokens, r.Cost)
	}

	s.Savings = s.Baseline.Sub(s.Total)
	if s.Baseline.IsPositive() {
		s.SavingsPercent = s.Savings.Div(s.Baseline).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return s
}

func addToBucket(b Bucket, tokens int64, cost decimal.Decimal) Bucket {
	b.Requests++
	b.Tokens += tokens
	b.Cost = b.Cost.Add(cost)
	return b
}

// CompareTiers returns the cost of the given token counts at every tier the
// provider is bound at.
func CompareTiers(reg *Registry, p Provider, inputTokens, outputTokens int64) (map[Tier]decimal.Decimal, error) {
	out := make(map[Tier]decimal.Decimal)
	for _, b := range reg.BindingsFor(p) {
		c, err := estimate(b, inputTokens, outputTokens)
		if err != nil {
			return nil, err
		}
		out[b.Tier] = c
	}
	return out, nil
}
