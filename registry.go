package tierrouter

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ProviderInfo is the static metadata of a registered provider.
type ProviderInfo struct {
	Name        Provider
	BaseURL     string
	RequiresKey bool
}

// Registry is the source of truth for providers and their model bindings.
// It is populated at startup; reads are safe from any goroutine.
type Registry struct {
	mu        sync.RWMutex
	order     []Provider
	providers map[Provider]ProviderInfo
	bindings  map[Provider]map[Tier]ModelBinding
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Provider]ProviderInfo),
		bindings:  make(map[Provider]map[Tier]ModelBinding),
	}
}

// AddProvider registers provider metadata. Re-adding updates the metadata
// and keeps the original registration position.
func (r *Registry) AddProvider(info ProviderInfo) error {
	if err := validateProvider(info.Name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(info)
	return nil
}

// Register upserts the binding for (provider, tier). Prices are dollars per
// million tokens. Unknown providers are added with default metadata.
func (r *Registry) Register(p Provider, tier Tier, model string, inputPrice, outputPrice decimal.Decimal) error {
	if err := validateProvider(p); err != nil {
		return err
	}
	if !tier.Valid() {
		return configErrorf(string(p)+".tier", "invalid tier %d", int(tier))
	}
	field := string(p) + "." + tier.String()
	if model == "" {
		return configErrorf(field, "model id is empty")
	}
	if inputPrice.IsNegative() {
		return configErrorf(field, "negative input price %s", inputPrice)
	}
	if outputPrice.IsNegative() {
		return configErrorf(field, "negative output price %s", outputPrice)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[p]; !ok {
		r.addLocked(ProviderInfo{Name: p, RequiresKey: p.RequiresKey()})
	}
	r.bindings[p][tier] = ModelBinding{
		Provider:    p,
		Tier:        tier,
		Model:       model,
		InputPrice:  inputPrice,
		OutputPrice: outputPrice,
	}
	return nil
}

// BindingsFor returns the provider's bindings ordered by tier ascending.
func (r *Registry) BindingsFor(p Provider) []ModelBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bs := r.bindings[p]
	out := make([]ModelBinding, 0, len(bs))
	for _, b := range bs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out
}

// Binding returns the binding for (provider, tier).
func (r *Registry) Binding(p Provider, tier Tier) (ModelBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[p][tier]
	return b, ok
}

// IsKnown reports whether the provider is registered.
func (r *Registry) IsKnown(p Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[p]
	return ok
}

// Info returns provider metadata.
func (r *Registry) Info(p Provider) (ProviderInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.providers[p]
	return info, ok
}

// Providers returns registered providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.order))
	copy(out, r.order)
	return out
}

// Available reports whether the provider has at least one binding.
func (r *Registry) Available(p Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bindings[p]) > 0
}

func (r *Registry) addLocked(info ProviderInfo) {
	if _, ok := r.providers[info.Name]; !ok {
		r.order = append(r.order, info.Name)
		r.bindings[info.Name] = make(map[Tier]ModelBinding)
	}
	r.providers[info.Name] = info
}

func validateProvider(p Provider) error {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama:
		return nil
	case ProviderHybrid:
		return configErrorf("provider", "%q is a meta-provider and cannot hold bindings", p)
	default:
		return configErrorf("provider", "unknown provider %q", p)
	}
}
