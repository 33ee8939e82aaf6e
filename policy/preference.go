package policy

import (
	"fmt"
	"sort"

	"github.com/ineyio/tierrouter"
)

// PreferencePolicy keeps the configured preference order and ignores price.
type PreferencePolicy struct{}

var _ tierrouter.Policy = (*PreferencePolicy)(nil)

// Select orders candidates by preference rank.
func (p *PreferencePolicy) Select(candidates []tierrouter.Candidate) []tierrouter.Candidate {
	result := make([]tierrouter.Candidate, len(candidates))
	copy(result, candidates)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Rank < result[j].Rank
	})

	return result
}

// ByName returns the policy for a config name. Empty selects preference.
func ByName(name string) (tierrouter.Policy, error) {
	switch name {
	case "", "preference":
		return &PreferencePolicy{}, nil
	case "free_first":
		return &FreeFirstPolicy{}, nil
	case "cost_first":
		return &CostFirstPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", tierrouter.ErrConfiguration, name)
	}
}
