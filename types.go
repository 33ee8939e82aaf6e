package tierrouter

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies a backend family.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"

	// ProviderHybrid is a meta-provider: route across every registered provider.
	ProviderHybrid Provider = "hybrid"
)

// Providers lists the concrete providers in their canonical order.
var Providers = []Provider{ProviderAnthropic, ProviderOpenAI, ProviderOllama}

// ParseProvider converts a config or CLI string into a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderHybrid:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

func (p Provider) String() string { return string(p) }

// RequiresKey reports whether the provider authenticates with an API key.
func (p Provider) RequiresKey() bool {
	return p == ProviderAnthropic || p == ProviderOpenAI
}

// Local reports whether the provider runs as a local daemon.
func (p Provider) Local() bool { return p == ProviderOllama }

// Tier is a cost/capability class. Ordered cheap < capable < premium.
type Tier int

const (
	TierCheap Tier = iota
	TierCapable
	TierPremium
)

// Tiers lists every tier in ascending cost order.
var Tiers = []Tier{TierCheap, TierCapable, TierPremium}

// ParseTier converts a config or CLI string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cheap":
		return TierCheap, nil
	case "capable":
		return TierCapable, nil
	case "premium":
		return TierPremium, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

func (t Tier) String() string {
	switch t {
	case TierCheap:
		return "cheap"
	case TierCapable:
		return "capable"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Valid reports whether t is one of the three tiers.
func (t Tier) Valid() bool { return t >= TierCheap && t <= TierPremium }

// Cheaper returns the next cheaper tier, or false at TierCheap.
func (t Tier) Cheaper() (Tier, bool) {
	if t <= TierCheap {
		return t, false
	}
	return t - 1, true
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// HealthStatus is the probed availability of a provider.
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthHealthy
	HealthUnreachable
)

func (h HealthStatus) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// ModelBinding maps a (provider, tier) pair to a concrete model and its price
// in dollars per million tokens.
type ModelBinding struct {
	Provider    Provider
	Tier        Tier
	Model       string
	InputPrice  decimal.Decimal
	OutputPrice decimal.Decimal
}

// Free reports whether the binding costs nothing to call.
func (b ModelBinding) Free() bool {
	return b.InputPrice.IsZero() && b.OutputPrice.IsZero()
}

// BlendedPrice returns a per-million price for sorting.
// Assumes ~3:1 input:output ratio typical for chat.
func (b ModelBinding) BlendedPrice() decimal.Decimal {
	return b.InputPrice.Mul(decimal.NewFromInt(3)).Add(b.OutputPrice).Div(decimal.NewFromInt(4))
}

// TaskRequest is a single caller request.
type TaskRequest struct {
	UserID   string
	Input    string
	TaskType string

	// Tier, when set, overrides classification.
	Tier *Tier

	// Provider restricts routing to one provider. Empty uses the configured
	// default; ProviderHybrid routes across all registered providers.
	Provider Provider
}

// Reason explains how the routed tier was chosen.
type Reason string

const (
	ReasonOverride   Reason = "override"
	ReasonClassified Reason = "classified"
	ReasonFallback   Reason = "fallback"
)

// RoutingDecision is the immutable outcome of routing one request.
type RoutingDecision struct {
	Provider      Provider
	Binding       ModelBinding
	Tier          Tier
	RequestedTier Tier
	Reason        Reason

	// Candidates is the provider order the router walked.
	Candidates []Provider
}

// Deescalated reports whether the decision runs at a cheaper tier than requested.
func (d RoutingDecision) Deescalated() bool { return d.Tier < d.RequestedTier }

// Usage is token usage reported by a client.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// CostRecord is the append-only cost entry for one completed request.
type CostRecord struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Provider      Provider        `json:"provider"`
	Tier          Tier            `json:"tier"`
	RequestedTier Tier            `json:"requested_tier"`
	Model         string          `json:"model"`
	InputTokens   int64           `json:"input_tokens"`
	OutputTokens  int64           `json:"output_tokens"`
	Cost          decimal.Decimal `json:"cost"`
	Baseline      decimal.Decimal `json:"baseline"`
	Fallback      bool            `json:"fallback"`
	Estimated     bool            `json:"estimated"`
}

// InteractionResult is returned by Facade.Interact.
type InteractionResult struct {
	ID       string
	Decision RoutingDecision
	Output   string
	Usage    Usage
	Record   CostRecord
	Attempts int
}
