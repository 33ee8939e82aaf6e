package policy

import (
	"sort"

	"github.com/ineyio/tierrouter"
)

// FreeFirstPolicy prioritizes free candidates (local models), then paid
// candidates sorted by blended price ASC. Preference order only breaks ties,
// so a cheaper paid provider wins over a preferred one. Opt-in.
type FreeFirstPolicy struct{}

var _ tierrouter.Policy = (*FreeFirstPolicy)(nil)

// Select orders candidates: free first, then paid (cheapest).
func (p *FreeFirstPolicy) Select(candidates []tierrouter.Candidate) []tierrouter.Candidate {
	result := make([]tierrouter.Candidate, len(candidates))
	copy(result, candidates)

	sort.SliceStable(result, func(i, j int) bool {
		ci, cj := result[i], result[j]

		// Free before paid.
		if ci.Free() != cj.Free() {
			return ci.Free()
		}

		if ci.Free() {
			return ci.Rank < cj.Rank
		}

		// Among paid: cheapest first.
		return ci.Binding.BlendedPrice().LessThan(cj.Binding.BlendedPrice())
	})

	return result
}
