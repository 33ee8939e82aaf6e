package tierrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultProbeTimeout = 2 * time.Second
	defaultProbeTTL     = 30 * time.Second
)

// Checker performs one availability check. A nil error means healthy.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// errMissingCredential is returned by CredentialCheck when no key is configured.
var errMissingCredential = errors.New("tierrouter: credential not configured")

// CredentialCheck marks a key-based provider healthy when a key is present.
type CredentialCheck struct {
	Key string
}

func (c CredentialCheck) Check(context.Context) error {
	if c.Key == "" {
		return errMissingCredential
	}
	return nil
}

// HTTPCheck marks a local daemon healthy when URL answers 2xx to a GET.
type HTTPCheck struct {
	URL    string
	Client *http.Client
}

func (c HTTPCheck) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("tierrouter: probe request: %w", err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: probe status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

// Prober determines which registered providers are currently reachable.
// Results are cached for a TTL; concurrent probes of one provider are merged.
type Prober struct {
	registry *Registry
	checkers map[Provider]Checker
	timeout  time.Duration
	ttl      time.Duration
	meter    Meter
	now      func() time.Time

	mu    sync.RWMutex
	cache map[Provider]probeEntry
	group singleflight.Group
}

type probeEntry struct {
	status HealthStatus
	at     time.Time
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithChecker sets the checker for a provider.
func WithChecker(p Provider, c Checker) ProberOption {
	return func(pr *Prober) { pr.checkers[p] = c }
}

// WithCheckers sets checkers for several providers.
func WithCheckers(cs map[Provider]Checker) ProberOption {
	return func(pr *Prober) {
		for p, c := range cs {
			pr.checkers[p] = c
		}
	}
}

// WithProbeTimeout sets the hard per-probe timeout (default 2s).
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(pr *Prober) { pr.timeout = d }
}

// WithProbeTTL sets how long probe results are cached (default 30s).
// Zero disables caching.
func WithProbeTTL(d time.Duration) ProberOption {
	return func(pr *Prober) { pr.ttl = d }
}

// WithProbeMeter sets the meter notified of probe outcomes.
func WithProbeMeter(m Meter) ProberOption {
	return func(pr *Prober) { pr.meter = m }
}

// NewProber creates a Prober over the providers in reg.
func NewProber(reg *Registry, opts ...ProberOption) *Prober {
	p := &Prober{
		registry: reg,
		checkers: make(map[Provider]Checker),
		timeout:  defaultProbeTimeout,
		ttl:      defaultProbeTTL,
		now:      time.Now,
		cache:    make(map[Provider]probeEntry),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.meter == nil {
		p.meter = noopMeter{}
	}
	return p
}

// Probe returns the health of one provider. It never returns an error:
// failed checks, timeouts and transport errors all map to HealthUnreachable.
// Providers without a checker are HealthUnknown.
//
// Concurrent callers share one check. The check runs detached from any
// caller's cancellation, bounded by the probe timeout; a caller whose ctx is
// done gets HealthUnreachable without affecting the others.
func (p *Prober) Probe(ctx context.Context, prov Provider) HealthStatus {
	if !p.registry.IsKnown(prov) {
		return HealthUnknown
	}

	if s, ok := p.cached(prov); ok {
		return s
	}

	ch := p.group.DoChan(string(prov), func() (any, error) {
		// Another caller may have filled the cache while we waited.
		if s, ok := p.cached(prov); ok {
			return s, nil
		}
		s := p.check(context.WithoutCancel(ctx), prov)
		p.mu.Lock()
		p.cache[prov] = probeEntry{status: s, at: p.now()}
		p.mu.Unlock()
		return s, nil
	})

	select {
	case r := <-ch:
		return r.Val.(HealthStatus)
	case <-ctx.Done():
		return HealthUnreachable
	}
}

// ProbeAll probes every registered provider concurrently.
func (p *Prober) ProbeAll(ctx context.Context) map[Provider]HealthStatus {
	provs := p.registry.Providers()
	results := make([]HealthStatus, len(provs))

	g, gCtx := errgroup.WithContext(ctx)
	for i, prov := range provs {
		i, prov := i, prov // per-iteration copies (go < 1.22 loop semantics)
		g.Go(func() error {
			// Unique index per goroutine, no lock needed.
			results[i] = p.Probe(gCtx, prov)
			return nil
		})
	}
	_ = g.Wait() // probes never return errors

	out := make(map[Provider]HealthStatus, len(provs))
	for i, prov := range provs {
		out[prov] = results[i]
	}
	return out
}

// Invalidate drops the cached result for a provider.
func (p *Prober) Invalidate(prov Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, prov)
}

// InvalidateAll drops every cached result.
func (p *Prober) InvalidateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[Provider]probeEntry)
}

func (p *Prober) cached(prov Provider) (HealthStatus, bool) {
	if p.ttl <= 0 {
		return HealthUnknown, false
	}
	p.mu.RLock()
	e, ok := p.cache[prov]
	p.mu.RUnlock()
	if !ok || p.now().Sub(e.at) >= p.ttl {
		return HealthUnknown, false
	}
	return e.status, true
}

func (p *Prober) check(ctx context.Context, prov Provider) HealthStatus {
	start := p.now()

	// Zero bindings means fully unavailable.
	if !p.registry.Available(prov) {
		p.meter.OnProbe(ProbeEvent{Provider: prov, Status: HealthUnreachable, Error: errNoBindings})
		return HealthUnreachable
	}

	c, ok := p.checkers[prov]
	if !ok {
		p.meter.OnProbe(ProbeEvent{Provider: prov, Status: HealthUnknown})
		return HealthUnknown
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- c.Check(ctx) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}

	status := HealthHealthy
	if err != nil {
		status = HealthUnreachable
	}
	p.meter.OnProbe(ProbeEvent{
		Provider: prov,
		Status:   status,
		Duration: p.now().Sub(start),
		Error:    err,
	})
	return status
}

var errNoBindings = errors.New("tierrouter: provider has no model bindings")
