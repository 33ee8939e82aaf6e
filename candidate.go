package tierrouter

// preferenceOrder returns the registered providers ordered by the configured
// preference list, followed by any remaining providers in registration order.
func preferenceOrder(reg *Registry, preference []Provider) []Provider {
	registered := reg.Providers()
	known := make(map[Provider]bool, len(registered))
	for _, p := range registered {
		known[p] = true
	}

	out := make([]Provider, 0, len(registered))
	seen := make(map[Provider]bool, len(registered))
	for _, p := range preference {
		if known[p] && !seen[p] {
			out = append(out, p)
			seen[p] = true
		}
	}
	for _, p := range registered {
		if !seen[p] {
			out = append(out, p)
		}
	}
	return out
}

// buildCandidates creates the candidates bound at tier, in provider order.
func buildCandidates(reg *Registry, providers []Provider, tier Tier, health map[Provider]HealthStatus) []Candidate {
	var candidates []Candidate
	for rank, p := range providers {
		b, ok := reg.Binding(p, tier)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			Provider: p,
			Binding:  b,
			Health:   health[p],
			Rank:     rank,
		})
	}
	return candidates
}

// filterCandidates removes candidates that are not known to be healthy.
func filterCandidates(candidates []Candidate) []Candidate {
	var filtered []Candidate
	for _, c := range candidates {
		if c.Health != HealthHealthy {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func without(providers []Provider, exclude []Provider) []Provider {
	if len(exclude) == 0 {
		return providers
	}
	skip := make(map[Provider]bool, len(exclude))
	for _, p := range exclude {
		skip[p] = true
	}
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if !skip[p] {
			out = append(out, p)
		}
	}
	return out
}
