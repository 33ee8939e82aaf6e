package tierrouter

import (
	"sync"
	"time"
)

const (
	breakerFailureThreshold = 3
	breakerFailureWindow    = 5 * time.Minute
	breakerOpenPeriod       = 30 * time.Second
)

// BreakerState is the circuit breaker state of a provider's call path.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// HealthTracker tracks per-provider LLM call outcomes using a circuit breaker.
// An open breaker makes the provider unreachable for routing until the open
// period elapses and the breaker half-opens.
type HealthTracker struct {
	mu        sync.RWMutex
	providers map[Provider]*providerHealth
	now       func() time.Time
}

type providerHealth struct {
	state    BreakerState
	failures []time.Time // sliding window of failure timestamps
	openedAt time.Time
}

// NewHealthTracker creates a new HealthTracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		providers: make(map[Provider]*providerHealth),
		now:       time.Now,
	}
}

// State returns the current breaker state for a provider.
func (h *HealthTracker) State(p Provider) BreakerState {
	h.mu.RLock()
	ph, ok := h.providers[p]
	h.mu.RUnlock()

	if !ok {
		return BreakerClosed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Open period elapsed → half-open.
	if ph.state == BreakerOpen && h.now().Sub(ph.openedAt) >= breakerOpenPeriod {
		ph.state = BreakerHalfOpen
	}

	return ph.state
}

// RecordSuccess records a successful call.
func (h *HealthTracker) RecordSuccess(p Provider) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ph := h.getOrCreate(p)
	ph.state = BreakerClosed
	ph.failures = ph.failures[:0]
}

// RecordFailure records a failed call.
func (h *HealthTracker) RecordFailure(p Provider) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ph := h.getOrCreate(p)
	if ph.state == BreakerOpen {
		return
	}

	now := h.now()

	// A failure while half-open reopens immediately.
	if ph.state == BreakerHalfOpen {
		ph.state = BreakerOpen
		ph.openedAt = now
		return
	}

	cutoff := now.Add(-breakerFailureWindow)
	valid := ph.failures[:0]
	for _, t := range ph.failures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	ph.failures = append(valid, now)

	if len(ph.failures) >= breakerFailureThreshold {
		ph.state = BreakerOpen
		ph.openedAt = now
	}
}

// Apply downgrades healthy providers with an open breaker to unreachable.
// The input map is not modified.
func (h *HealthTracker) Apply(snapshot map[Provider]HealthStatus) map[Provider]HealthStatus {
	out := make(map[Provider]HealthStatus, len(snapshot))
	for p, s := range snapshot {
		if s == HealthHealthy && h.State(p) == BreakerOpen {
			s = HealthUnreachable
		}
		out[p] = s
	}
	return out
}

func (h *HealthTracker) getOrCreate(p Provider) *providerHealth {
	ph, ok := h.providers[p]
	if !ok {
		ph = &providerHealth{state: BreakerClosed}
		h.providers[p] = ph
	}
	return ph
}
