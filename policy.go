package tierrouter

// Policy orders routing candidates for one tier.
type Policy interface {
	// Select orders candidates by priority. Returns ordered slice (highest
	// priority first). Candidates arrive in configured preference order and
	// implementations must keep that order for ties.
	Select(candidates []Candidate) []Candidate
}

// Candidate represents a possible route at one tier.
type Candidate struct {
	Provider Provider
	Binding  ModelBinding
	Health   HealthStatus

	// Rank is the candidate's position in the preference order.
	Rank int
}

// Free reports whether the candidate's binding costs nothing.
func (c Candidate) Free() bool { return c.Binding.Free() }

// defaultPreferencePolicy keeps candidates in preference order. Inline to
// avoid an import cycle with package policy.
type defaultPreferencePolicy struct{}

func (p *defaultPreferencePolicy) Select(candidates []Candidate) []Candidate {
	return candidates
}
