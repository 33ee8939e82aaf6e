package policy

import (
	"sort"

	"github.com/ineyio/tierrouter"
)

// CostFirstPolicy prioritizes candidates by blended price (cheapest first).
// Free candidates (price=0) naturally come first. Preference order only
// breaks ties. Opt-in.
type CostFirstPolicy struct{}

var _ tierrouter.Policy = (*CostFirstPolicy)(nil)

// Select orders candidates by price per token ascending.
func (p *CostFirstPolicy) Select(candidates []tierrouter.Candidate) []tierrouter.Candidate {
	result := make([]tierrouter.Candidate, len(candidates))
	copy(result, candidates)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Binding.BlendedPrice().LessThan(result[j].Binding.BlendedPrice())
	})

	return result
}
