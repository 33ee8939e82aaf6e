package tierrouter_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tr "github.com/ineyio/tierrouter"
	"github.com/ineyio/tierrouter/ledger"
	"github.com/ineyio/tierrouter/provider/mock"
)

type facadeEnv struct {
	reg     *tr.Registry
	clients map[tr.Provider]tr.Client
	health  map[tr.Provider]error
}

// newFacadeEnv binds anthropic at all three tiers, openai at cheap and
// capable, and ollama (free) at cheap. Every provider probes healthy and
// answers through a default mock unless overridden.
func newFacadeEnv(t *testing.T) *facadeEnv {
	t.Helper()
	reg := tr.NewRegistry()
	require.NoError(t, reg.Register(tr.ProviderAnthropic, tr.TierCheap, "claude-3-5-haiku-20241022", price("0.80"), price("4")))
	require.NoError(t, reg.Register(tr.ProviderAnthropic, tr.TierCapable, "claude-sonnet-4-20250514", price("3"), price("15")))
	require.NoError(t, reg.Register(tr.ProviderAnthropic, tr.TierPremium, "claude-opus-4-5-20251101", price("15"), price("75")))
	require.NoError(t, reg.Register(tr.ProviderOpenAI, tr.TierCheap, "gpt-4o-mini", price("0.15"), price("0.60")))
	require.NoError(t, reg.Register(tr.ProviderOpenAI, tr.TierCapable, "gpt-4o", price("2.50"), price("10")))
	require.NoError(t, reg.Register(tr.ProviderOllama, tr.TierCheap, "llama3.2:3b", decimal.Zero, decimal.Zero))

	return &facadeEnv{
		reg: reg,
		clients: map[tr.Provider]tr.Client{
			tr.ProviderAnthropic: mock.New(),
			tr.ProviderOpenAI:    mock.New(),
			tr.ProviderOllama:    mock.New(),
		},
		health: map[tr.Provider]error{},
	}
}

func (e *facadeEnv) down(p tr.Provider) { e.health[p] = errors.New("down") }

func (e *facadeEnv) facade(t *testing.T, opts ...tr.FacadeOption) *tr.Facade {
	t.Helper()
	checkers := make(map[tr.Provider]tr.Checker)
	for _, p := range e.reg.Providers() {
		err := e.health[p]
		checkers[p] = tr.CheckerFunc(func(context.Context) error { return err })
	}
	prober := tr.NewProber(e.reg, tr.WithCheckers(checkers))
	router := tr.NewRouter(e.reg, tr.WithPreference(tr.ProviderOllama, tr.ProviderAnthropic, tr.ProviderOpenAI))

	f, err := tr.NewFacade(e.reg, prober, router, e.clients, opts...)
	require.NoError(t, err)
	return f
}

func tierPtr(t tr.Tier) *tr.Tier { return &t }

func TestInteract_ClassifiesAndPrefersFreeProvider(t *testing.T) {
	env := newFacadeEnv(t)
	f := env.facade(t)

	res, err := f.Interact(context.Background(), tr.TaskRequest{
		UserID:   "u1",
		TaskType: "summarize",
		Input:    "Summarize this changelog.",
	})
	require.NoError(t, err)

	assert.Equal(t, tr.ProviderOllama, res.Decision.Provider)
	assert.Equal(t, tr.TierCheap, res.Decision.Tier)
	assert.Equal(t, tr.ReasonClassified, res.Decision.Reason)
	assert.Equal(t, "Hello from mock provider", res.Output)
	assert.Equal(t, 1, res.Attempts)
	assert.NotEmpty(t, res.ID)
	assert.True(t, res.Record.Cost.IsZero())
	assert.Equal(t, []string{"llama3.2:3b"}, env.clients[tr.ProviderOllama].(*mock.Client).Models())
}

func TestInteract_TierOverrideSkipsClassification(t *testing.T) {
	env := newFacadeEnv(t)
	f := env.facade(t)

	res, err := f.Interact(context.Background(), tr.TaskRequest{
		UserID:   "u1",
		TaskType: "summarize",
		Tier:     tierPtr(tr.TierPremium),
	})
	require.NoError(t, err)

	assert.Equal(t, tr.ProviderAnthropic, res.Decision.Provider)
	assert.Equal(t, "claude-opus-4-5-20251101", res.Decision.Binding.Model)
	assert.Equal(t, tr.ReasonOverride, res.Decision.Reason)
}

func TestInteract_InvalidTierOverride(t *testing.T) {
	f := newFacadeEnv(t).facade(t)

	_, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", Tier: tierPtr(tr.Tier(7))})
	assert.ErrorIs(t, err, tr.ErrUnknownTier)
}

func TestInteract_RecordsCost(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderAnthropic] = mock.New(mock.WithUsage(tr.Usage{InputTokens: 1000, OutputTokens: 500}))
	f := env.facade(t)

	res, err := f.Interact(context.Background(), tr.TaskRequest{
		UserID:   "u1",
		TaskType: "code_review",
		Provider: tr.ProviderAnthropic,
	})
	require.NoError(t, err)

	assert.Equal(t, tr.TierCapable, res.Decision.Tier)
	assert.True(t, price("0.0105").Equal(res.Record.Cost), "cost %s", res.Record.Cost)
	assert.True(t, price("0.0525").Equal(res.Record.Baseline), "baseline %s", res.Record.Baseline)
	assert.False(t, res.Record.Estimated)
	assert.True(t, price("0.0105").Equal(f.Accountant().TotalFor("u1")))
	assert.Len(t, f.Accountant().Records("u1"), 1)
}

func TestInteract_EstimatesUsageWhenBackendReportsNone(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderOllama] = mock.New(mock.WithUsage(tr.Usage{}), mock.WithOutput("short reply"))
	f := env.facade(t)

	input := "Classify this ticket as bug or feature."
	res, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "classify", Input: input})
	require.NoError(t, err)

	assert.True(t, res.Record.Estimated)
	assert.Equal(t, tr.EstimateTokens(input), res.Usage.InputTokens)
	assert.Equal(t, tr.EstimateTokens("short reply"), res.Usage.OutputTokens)
}

func TestInteract_ClientFailureRecordsNothing(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderOllama] = mock.New(mock.WithError(tr.ErrRateLimited))
	f := env.facade(t)

	_, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "summarize"})
	require.Error(t, err)
	assert.ErrorIs(t, err, tr.ErrRateLimited)

	var ie *tr.InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, tr.ProviderOllama, ie.Decision.Provider)
	assert.Equal(t, 1, ie.Attempts)

	assert.Empty(t, f.Accountant().Records("u1"))
	assert.True(t, f.Accountant().TotalFor("u1").IsZero())
}

func TestInteract_AutoFailoverTriesNextProvider(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderOllama] = mock.New(mock.WithError(fmt.Errorf("%w: connection reset", tr.ErrProviderUnavailable)))
	f := env.facade(t, tr.WithAutoFailover(2))

	res, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "summarize"})
	require.NoError(t, err)

	assert.Equal(t, tr.ProviderAnthropic, res.Decision.Provider)
	assert.Equal(t, tr.TierCheap, res.Decision.Tier)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, f.Accountant().Records("u1"), 1)
}

func TestInteract_FatalErrorNeverFailsOver(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderOllama] = mock.New(mock.WithError(fmt.Errorf("%w: prompt too long", tr.ErrInvalidRequest)))
	f := env.facade(t, tr.WithAutoFailover(3))

	_, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "summarize"})
	assert.ErrorIs(t, err, tr.ErrInvalidRequest)
	assert.Zero(t, env.clients[tr.ProviderAnthropic].(*mock.Client).CallCount())
	assert.Zero(t, env.clients[tr.ProviderOpenAI].(*mock.Client).CallCount())
}

func TestInteract_FailoverExhaustedReturnsLastCallError(t *testing.T) {
	env := newFacadeEnv(t)
	for _, p := range env.reg.Providers() {
		env.clients[p] = mock.New(mock.WithError(tr.ErrProviderUnavailable))
	}
	f := env.facade(t, tr.WithAutoFailover(5))

	_, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "summarize"})
	require.Error(t, err)

	var ie *tr.InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 3, ie.Attempts)
	assert.ErrorIs(t, err, tr.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, tr.ErrNoProviderAvailable)
}

func TestInteract_CancelledCallRecordsNothing(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderOllama] = mock.New(mock.WithLatency(5 * time.Second))
	f := env.facade(t, tr.WithAutoFailover(2))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Interact(ctx, tr.TaskRequest{UserID: "u1", TaskType: "summarize"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.Accountant().Records("u1"))
	assert.Zero(t, env.clients[tr.ProviderAnthropic].(*mock.Client).CallCount(), "cancellation must not fail over")
}

func TestInteract_NoHealthyProvider(t *testing.T) {
	env := newFacadeEnv(t)
	env.down(tr.ProviderAnthropic)
	env.down(tr.ProviderOpenAI)
	env.down(tr.ProviderOllama)
	f := env.facade(t)

	_, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "architect"})
	assert.ErrorIs(t, err, tr.ErrNoProviderAvailable)

	var npe *tr.NoProviderError
	require.ErrorAs(t, err, &npe)
	assert.Equal(t, []tr.Tier{tr.TierPremium, tr.TierCapable, tr.TierCheap}, npe.Tiers)
}

func TestInteract_DeescalatesWhenPremiumDown(t *testing.T) {
	env := newFacadeEnv(t)
	env.down(tr.ProviderAnthropic)
	f := env.facade(t)

	res, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "architect"})
	require.NoError(t, err)

	assert.Equal(t, tr.ProviderOpenAI, res.Decision.Provider)
	assert.Equal(t, tr.TierCapable, res.Decision.Tier)
	assert.Equal(t, tr.TierPremium, res.Decision.RequestedTier)
	assert.Equal(t, tr.ReasonFallback, res.Decision.Reason)
	assert.True(t, res.Record.Fallback)
}

func TestInteract_RequiresUser(t *testing.T) {
	f := newFacadeEnv(t).facade(t)

	_, err := f.Interact(context.Background(), tr.TaskRequest{TaskType: "summarize"})
	assert.ErrorIs(t, err, tr.ErrInvalidRequest)
}

func TestInteract_BreakerReroutesAfterRepeatedFailures(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderOllama] = mock.New(mock.WithError(tr.ErrProviderUnavailable))
	f := env.facade(t)

	req := tr.TaskRequest{UserID: "u1", TaskType: "summarize"}
	for i := 0; i < 3; i++ {
		_, err := f.Interact(context.Background(), req)
		require.Error(t, err)
	}

	res, err := f.Interact(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, tr.ProviderAnthropic, res.Decision.Provider)
	assert.Equal(t, tr.HealthUnreachable, f.Health(context.Background())[tr.ProviderOllama])
}

func TestNewFacade_RequiresClientPerProvider(t *testing.T) {
	env := newFacadeEnv(t)
	delete(env.clients, tr.ProviderOpenAI)

	_, err := tr.NewFacade(env.reg, tr.NewProber(env.reg), tr.NewRouter(env.reg), env.clients)
	require.Error(t, err)

	var ce *tr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "clients.openai", ce.Field)
}

// cancelAwareLedger records whether Append saw a live context.
type cancelAwareLedger struct {
	*ledger.MemoryLedger
	appendErr error
}

func (l *cancelAwareLedger) Append(ctx context.Context, rec tr.CostRecord) error {
	l.appendErr = ctx.Err()
	if l.appendErr != nil {
		return l.appendErr
	}
	return l.MemoryLedger.Append(ctx, rec)
}

func TestInteract_LedgerAppendSurvivesCallerCancel(t *testing.T) {
	env := newFacadeEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.clients[tr.ProviderOllama] = tr.ClientFunc(func(context.Context, string, string) (tr.Completion, error) {
		// The caller goes away right as the backend answers.
		cancel()
		return tr.Completion{Output: "ok", Usage: tr.Usage{InputTokens: 5, OutputTokens: 5}}, nil
	})

	l := &cancelAwareLedger{MemoryLedger: ledger.NewMemoryLedger()}
	f := env.facade(t, tr.WithLedger(l))

	res, err := f.Interact(ctx, tr.TaskRequest{UserID: "u1", TaskType: "summarize"})
	require.NoError(t, err)
	assert.NoError(t, l.appendErr)

	recs, err := l.Records(context.Background(), "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.Record.ID, recs[0].ID)
}

type recordingMeter struct {
	mu        sync.Mutex
	classify  []tr.ClassifyEvent
	routes    []tr.RouteEvent
	results   []tr.ResultEvent
	records   []tr.RecordEvent
	probeSeen int
}

func (m *recordingMeter) OnClassify(e tr.ClassifyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classify = append(m.classify, e)
}

func (m *recordingMeter) OnRoute(e tr.RouteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, e)
}

func (m *recordingMeter) OnResult(e tr.ResultEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, e)
}

func (m *recordingMeter) OnProbe(tr.ProbeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeSeen++
}

func (m *recordingMeter) OnRecord(e tr.RecordEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, e)
}

func TestInteract_MeterEvents(t *testing.T) {
	env := newFacadeEnv(t)
	env.clients[tr.ProviderOllama] = mock.New(mock.WithError(tr.ErrRateLimited))
	m := &recordingMeter{}
	f := env.facade(t, tr.WithMeter(m), tr.WithAutoFailover(1), tr.WithLedger(ledger.NewMemoryLedger()))

	_, err := f.Interact(context.Background(), tr.TaskRequest{UserID: "u1", TaskType: "triage"})
	require.NoError(t, err)

	require.Len(t, m.classify, 1)
	assert.Equal(t, "triage", m.classify[0].Keyword)
	assert.Equal(t, tr.TierCheap, m.classify[0].Tier)

	require.Len(t, m.routes, 2)
	assert.Equal(t, tr.ProviderOllama, m.routes[0].Provider)
	assert.Equal(t, 1, m.routes[0].AttemptNum)
	assert.Equal(t, tr.ProviderAnthropic, m.routes[1].Provider)
	assert.Equal(t, 2, m.routes[1].AttemptNum)

	require.Len(t, m.results, 2)
	assert.False(t, m.results[0].Success)
	assert.ErrorIs(t, m.results[0].Error, tr.ErrRateLimited)
	assert.True(t, m.results[1].Success)

	require.Len(t, m.records, 1)
	assert.NoError(t, m.records[0].Error)
}
