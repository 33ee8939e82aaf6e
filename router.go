package tierrouter

import "fmt"

// Router picks one provider model for a tier. Routing is a pure function of
// the registry, the health snapshot and the request: no I/O, no randomness.
type Router struct {
	registry        *Registry
	policy          Policy
	defaultProvider Provider
	preference      []Provider
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithPolicy sets the routing policy (default: preference order).
func WithPolicy(p Policy) RouterOption {
	return func(r *Router) { r.policy = p }
}

// WithDefaultProvider sets the provider used when a request names none
// (default ProviderHybrid).
func WithDefaultProvider(p Provider) RouterOption {
	return func(r *Router) { r.defaultProvider = p }
}

// WithPreference sets the provider preference order for hybrid routing.
func WithPreference(ps ...Provider) RouterOption {
	return func(r *Router) { r.preference = ps }
}

// NewRouter creates a Router over reg.
func NewRouter(reg *Registry, opts ...RouterOption) *Router {
	r := &Router{
		registry:        reg,
		defaultProvider: ProviderHybrid,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy == nil {
		r.policy = &defaultPreferencePolicy{}
	}
	return r
}

// DefaultProvider returns the provider used when a request names none.
func (r *Router) DefaultProvider() Provider { return r.defaultProvider }

// RouteRequest is the router's input.
type RouteRequest struct {
	Tier   Tier
	Reason Reason // ReasonOverride or ReasonClassified

	// Provider restricts routing to one provider. Empty uses the default.
	Provider Provider

	// Exclude removes providers from consideration (used by failover).
	Exclude []Provider
}

// Route produces a RoutingDecision. Candidates are walked in policy order at
// the requested tier; when none is healthy and bound, the next cheaper tier
// is tried, down to TierCheap.
func (r *Router) Route(req RouteRequest, health map[Provider]HealthStatus) (RoutingDecision, error) {
	if !req.Tier.Valid() {
		return RoutingDecision{}, fmt.Errorf("%w: %d", ErrUnknownTier, int(req.Tier))
	}
	reason := req.Reason
	if reason == "" {
		reason = ReasonClassified
	}

	order, err := r.candidateOrder(req)
	if err != nil {
		return RoutingDecision{}, err
	}

	var attempted []Tier
	tier := req.Tier
	for {
		attempted = append(attempted, tier)

		candidates := filterCandidates(buildCandidates(r.registry, order, tier, health))
		if len(candidates) > 0 {
			c := r.policy.Select(candidates)[0]
			d := RoutingDecision{
				Provider:      c.Provider,
				Binding:       c.Binding,
				Tier:          tier,
				RequestedTier: req.Tier,
				Reason:        reason,
				Candidates:    order,
			}
			if tier < req.Tier {
				d.Reason = ReasonFallback
			}
			return d, nil
		}

		next, ok := tier.Cheaper()
		if !ok {
			break
		}
		tier = next
	}

	return RoutingDecision{}, &NoProviderError{Tiers: attempted, Providers: order}
}

func (r *Router) candidateOrder(req RouteRequest) ([]Provider, error) {
	p := req.Provider
	if p == "" {
		p = r.defaultProvider
	}

	var order []Provider
	if p == ProviderHybrid {
		order = preferenceOrder(r.registry, r.preference)
	} else {
		if !r.registry.IsKnown(p) {
			return nil, fmt.Errorf("%w: %q is not registered", ErrUnknownProvider, p)
		}
		order = []Provider{p}
	}
	return without(order, req.Exclude), nil
}
