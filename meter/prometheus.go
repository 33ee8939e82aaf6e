package meter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ineyio/tierrouter"
)

// PromMeter exports routing events as Prometheus metrics.
type PromMeter struct {
	Classifications *prometheus.CounterVec
	Routes          *prometheus.CounterVec
	Results         *prometheus.CounterVec
	Latency         *prometheus.HistogramVec
	Tokens          *prometheus.CounterVec
	CostDollars     *prometheus.CounterVec
	Probes          *prometheus.CounterVec
	LedgerErrors    prometheus.Counter
}

var _ tierrouter.Meter = (*PromMeter)(nil)

// NewPromMeter creates a PromMeter and registers its collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPromMeter(reg prometheus.Registerer) *PromMeter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PromMeter{
		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierrouter_classifications_total",
				Help: "Requests classified, by tier and whether the default was used",
			},
			[]string{"tier", "fallback"},
		),
		Routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierrouter_routes_total",
				Help: "Routing decisions, by provider, tier and reason",
			},
			[]string{"provider", "tier", "reason"},
		),
		Results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierrouter_results_total",
				Help: "Client calls, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tierrouter_call_duration_seconds",
				Help:    "Client call latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"provider"},
		),
		Tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierrouter_tokens_total",
				Help: "Tokens consumed, by provider and direction",
			},
			[]string{"provider", "direction"},
		),
		CostDollars: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierrouter_cost_dollars_total",
				Help: "Accumulated request cost in dollars",
			},
			[]string{"provider", "tier"},
		),
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierrouter_probes_total",
				Help: "Availability probes, by provider and status",
			},
			[]string{"provider", "status"},
		),
		LedgerErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tierrouter_ledger_errors_total",
				Help: "Failed ledger appends",
			},
		),
	}

	reg.MustRegister(
		m.Classifications, m.Routes, m.Results, m.Latency,
		m.Tokens, m.CostDollars, m.Probes, m.LedgerErrors,
	)
	return m
}

func (m *PromMeter) OnClassify(e tierrouter.ClassifyEvent) {
	fallback := "false"
	if e.Fallback {
		fallback = "true"
	}
	m.Classifications.WithLabelValues(e.Tier.String(), fallback).Inc()
}

func (m *PromMeter) OnRoute(e tierrouter.RouteEvent) {
	m.Routes.WithLabelValues(string(e.Provider), e.Tier.String(), string(e.Reason)).Inc()
}

func (m *PromMeter) OnResult(e tierrouter.ResultEvent) {
	p := string(e.Provider)
	m.Latency.WithLabelValues(p).Observe(e.Duration.Seconds())
	if !e.Success {
		m.Results.WithLabelValues(p, "error").Inc()
		return
	}
	m.Results.WithLabelValues(p, "success").Inc()
	m.Tokens.WithLabelValues(p, "input").Add(float64(e.Usage.InputTokens))
	m.Tokens.WithLabelValues(p, "output").Add(float64(e.Usage.OutputTokens))
	m.CostDollars.WithLabelValues(p, e.Tier.String()).Add(e.Cost.InexactFloat64())
}

func (m *PromMeter) OnProbe(e tierrouter.ProbeEvent) {
	m.Probes.WithLabelValues(string(e.Provider), e.Status.String()).Inc()
}

func (m *PromMeter) OnRecord(e tierrouter.RecordEvent) {
	if e.Error != nil {
		m.LedgerErrors.Inc()
	}
}
