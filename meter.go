package tierrouter

import (
	"time"

	"github.com/shopspring/decimal"
)

// Meter observes routing events for monitoring/logging.
type Meter interface {
	// OnClassify is called when a request tier is classified.
	OnClassify(event ClassifyEvent)

	// OnRoute is called when a routing decision is made.
	OnRoute(event RouteEvent)

	// OnResult is called when a client returns a result.
	OnResult(event ResultEvent)

	// OnProbe is called when a provider is actually probed (not on cache hits).
	OnProbe(event ProbeEvent)

	// OnRecord is called after a cost record is written to the ledger.
	OnRecord(event RecordEvent)
}

// ClassifyEvent describes a classification.
type ClassifyEvent struct {
	TaskType string
	Keyword  string
	Tier     Tier
	Fallback bool
}

// RouteEvent describes a routing decision.
type RouteEvent struct {
	UserID        string
	Provider      Provider
	Model         string
	Tier          Tier
	RequestedTier Tier
	Reason        Reason
	AttemptNum    int
	EstimatedIn   int64
}

// ResultEvent describes the outcome of a client call.
type ResultEvent struct {
	UserID   string
	Provider Provider
	Model    string
	Tier     Tier
	Success  bool
	Duration time.Duration
	Usage    Usage
	Cost     decimal.Decimal
	Error    error
}

// ProbeEvent describes one availability check.
type ProbeEvent struct {
	Provider Provider
	Status   HealthStatus
	Duration time.Duration
	Error    error
}

// RecordEvent describes a ledger append.
type RecordEvent struct {
	Record CostRecord
	Error  error
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (noopMeter) OnClassify(ClassifyEvent) {}
func (noopMeter) OnRoute(RouteEvent)       {}
func (noopMeter) OnResult(ResultEvent)     {}
func (noopMeter) OnProbe(ProbeEvent)       {}
func (noopMeter) OnRecord(RecordEvent)     {}
