package tierrouter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Facade is the single entry point: classify → route → call → record.
type Facade struct {
	registry   *Registry
	prober     *Prober
	router     *Router
	clients    map[Provider]Client
	classifier *Classifier
	accountant *Accountant
	health     *HealthTracker
	meter      Meter
	ledger     Ledger

	autoFailover bool
	maxFailover  int
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithClassifier sets the task classifier.
func WithClassifier(c *Classifier) FacadeOption {
	return func(f *Facade) { f.classifier = c }
}

// WithAccountant sets the cost accountant.
func WithAccountant(a *Accountant) FacadeOption {
	return func(f *Facade) { f.accountant = a }
}

// WithHealthTracker sets the call-outcome circuit breaker.
func WithHealthTracker(h *HealthTracker) FacadeOption {
	return func(f *Facade) { f.health = h }
}

// WithMeter sets the meter.
func WithMeter(m Meter) FacadeOption {
	return func(f *Facade) { f.meter = m }
}

// WithLedger sets a durable ledger that receives every cost record.
func WithLedger(l Ledger) FacadeOption {
	return func(f *Facade) { f.ledger = l }
}

// WithAutoFailover enables cross-provider retry after a failed call.
// maxAttempts bounds the retries; values below 1 mean 1.
func WithAutoFailover(maxAttempts int) FacadeOption {
	return func(f *Facade) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		f.autoFailover = true
		f.maxFailover = maxAttempts
	}
}

// NewFacade wires the components together. Every registered provider must
// have a client.
func NewFacade(reg *Registry, prober *Prober, router *Router, clients map[Provider]Client, opts ...FacadeOption) (*Facade, error) {
	if reg == nil || prober == nil || router == nil {
		return nil, configErrorf("facade", "registry, prober and router are required")
	}
	for _, p := range reg.Providers() {
		if clients[p] == nil {
			return nil, configErrorf("clients."+string(p), "no client for registered provider")
		}
	}

	f := &Facade{
		registry: reg,
		prober:   prober,
		router:   router,
		clients:  clients,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.classifier == nil {
		f.classifier = NewClassifier(nil, 0)
	}
	if f.accountant == nil {
		f.accountant = NewAccountant(WithBaseline(reg))
	}
	if f.health == nil {
		f.health = NewHealthTracker()
	}
	if f.meter == nil {
		f.meter = noopMeter{}
	}

	return f, nil
}

// Registry returns the provider registry.
func (f *Facade) Registry() *Registry { return f.registry }

// Accountant returns the cost accountant.
func (f *Facade) Accountant() *Accountant { return f.accountant }

// Classifier returns the task classifier.
func (f *Facade) Classifier() *Classifier { return f.classifier }

// Health probes every provider and applies the call-outcome breaker.
func (f *Facade) Health(ctx context.Context) map[Provider]HealthStatus {
	return f.health.Apply(f.prober.ProbeAll(ctx))
}

// Interact serves one request. A failed client call is returned as an
// *InteractionError carrying the decision; no cost is recorded for failed or
// cancelled calls.
func (f *Facade) Interact(ctx context.Context, req TaskRequest) (InteractionResult, error) {
	if req.UserID == "" {
		return InteractionResult{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	rr := RouteRequest{Provider: req.Provider}
	if req.Tier != nil {
		if !req.Tier.Valid() {
			return InteractionResult{}, fmt.Errorf("%w: %d", ErrUnknownTier, int(*req.Tier))
		}
		rr.Tier = *req.Tier
		rr.Reason = ReasonOverride
	} else {
		c := f.classifier.Explain(req.TaskType, req.Input)
		f.meter.OnClassify(ClassifyEvent{
			TaskType: req.TaskType,
			Keyword:  c.Keyword,
			Tier:     c.Tier,
			Fallback: c.Fallback,
		})
		rr.Tier = c.Tier
		rr.Reason = ReasonClassified
	}

	estimatedIn := EstimateTokens(req.Input)

	var lastErr *InteractionError
	for attempt := 1; ; attempt++ {
		d, err := f.router.Route(rr, f.Health(ctx))
		if err != nil {
			// Failover ran out of alternates: report the call failure.
			if lastErr != nil {
				return InteractionResult{}, lastErr
			}
			return InteractionResult{}, err
		}

		client := f.clients[d.Provider]
		if client == nil {
			return InteractionResult{}, configErrorf("clients."+string(d.Provider), "no client for registered provider")
		}

		f.meter.OnRoute(RouteEvent{
			UserID:        req.UserID,
			Provider:      d.Provider,
			Model:         d.Binding.Model,
			Tier:          d.Tier,
			RequestedTier: d.RequestedTier,
			Reason:        d.Reason,
			AttemptNum:    attempt,
			EstimatedIn:   estimatedIn,
		})

		start := time.Now()
		comp, err := client.Send(ctx, d.Binding.Model, req.Input)
		duration := time.Since(start)

		if err != nil {
			if ctx.Err() == nil {
				f.health.RecordFailure(d.Provider)
			}
			f.meter.OnResult(ResultEvent{
				UserID:   req.UserID,
				Provider: d.Provider,
				Model:    d.Binding.Model,
				Tier:     d.Tier,
				Success:  false,
				Duration: duration,
				Error:    err,
			})

			lastErr = &InteractionError{Err: err, Decision: d, Attempts: attempt}
			if ctx.Err() != nil || IsFatal(err) || !f.autoFailover || attempt > f.maxFailover {
				return InteractionResult{}, lastErr
			}
			rr.Exclude = append(rr.Exclude, d.Provider)
			continue
		}

		f.health.RecordSuccess(d.Provider)

		usage := comp.Usage
		estimated := false
		if usage.InputTokens == 0 && usage.OutputTokens == 0 {
			usage = Usage{InputTokens: estimatedIn, OutputTokens: EstimateTokens(comp.Output)}
			estimated = true
		}

		rec, err := f.accountant.record(req.UserID, d, usage.InputTokens, usage.OutputTokens, estimated)
		if err != nil {
			return InteractionResult{}, &InteractionError{Err: err, Decision: d, Attempts: attempt}
		}

		f.meter.OnResult(ResultEvent{
			UserID:   req.UserID,
			Provider: d.Provider,
			Model:    d.Binding.Model,
			Tier:     d.Tier,
			Success:  true,
			Duration: duration,
			Usage:    usage,
			Cost:     rec.Cost,
		})

		if f.ledger != nil {
			// The call completed; the record must land even if the caller has
			// since gone away.
			lerr := f.ledger.Append(context.WithoutCancel(ctx), rec)
			f.meter.OnRecord(RecordEvent{Record: rec, Error: lerr})
		}

		return InteractionResult{
			ID:       uuid.New().String(),
			Decision: d,
			Output:   comp.Output,
			Usage:    usage,
			Record:   rec,
			Attempts: attempt,
		}, nil
	}
}
