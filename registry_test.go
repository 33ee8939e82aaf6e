package tierrouter_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tr "github.com/ineyio/tierrouter"
)

func TestRegistry_RegisterIsIdempotentUpsert(t *testing.T) {
	reg := tr.NewRegistry()
	require.NoError(t, reg.Register(tr.ProviderOpenAI, tr.TierCheap, "gpt-4o-mini", price("0.15"), price("0.60")))
	require.NoError(t, reg.Register(tr.ProviderOpenAI, tr.TierCheap, "gpt-4o-mini", price("0.15"), price("0.60")))
	require.NoError(t, reg.Register(tr.ProviderOpenAI, tr.TierCheap, "gpt-4.1-mini", price("0.40"), price("1.60")))

	bs := reg.BindingsFor(tr.ProviderOpenAI)
	require.Len(t, bs, 1)
	assert.Equal(t, "gpt-4.1-mini", bs[0].Model)
	assert.Equal(t, []tr.Provider{tr.ProviderOpenAI}, reg.Providers())
}

func TestRegistry_BindingsOrderedByTier(t *testing.T) {
	reg := tr.NewRegistry()
	require.NoError(t, reg.Register(tr.ProviderAnthropic, tr.TierPremium, "opus", price("15"), price("75")))
	require.NoError(t, reg.Register(tr.ProviderAnthropic, tr.TierCheap, "haiku", price("0.8"), price("4")))
	require.NoError(t, reg.Register(tr.ProviderAnthropic, tr.TierCapable, "sonnet", price("3"), price("15")))

	bs := reg.BindingsFor(tr.ProviderAnthropic)
	require.Len(t, bs, 3)
	assert.Equal(t, []string{"haiku", "sonnet", "opus"}, []string{bs[0].Model, bs[1].Model, bs[2].Model})
}

func TestRegistry_RejectsInvalidEntries(t *testing.T) {
	reg := tr.NewRegistry()

	tests := []struct {
		name string
		err  error
	}{
		{"empty model", reg.Register(tr.ProviderOpenAI, tr.TierCheap, "", decimal.Zero, decimal.Zero)},
		{"negative input", reg.Register(tr.ProviderOpenAI, tr.TierCheap, "m", price("-1"), decimal.Zero)},
		{"negative output", reg.Register(tr.ProviderOpenAI, tr.TierCheap, "m", decimal.Zero, price("-0.01"))},
		{"hybrid", reg.Register(tr.ProviderHybrid, tr.TierCheap, "m", decimal.Zero, decimal.Zero)},
		{"unknown provider", reg.Register(tr.Provider("gemini"), tr.TierCheap, "m", decimal.Zero, decimal.Zero)},
		{"bad tier", reg.Register(tr.ProviderOpenAI, tr.Tier(9), "m", decimal.Zero, decimal.Zero)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.ErrorIs(t, tt.err, tr.ErrConfiguration)
			var ce *tr.ConfigError
			assert.True(t, errors.As(tt.err, &ce))
		})
	}

	// Rejected entries leave no trace.
	assert.False(t, reg.IsKnown(tr.ProviderOpenAI))
	assert.Empty(t, reg.Providers())
}

func TestRegistry_ProviderWithoutBindingsIsUnavailable(t *testing.T) {
	reg := tr.NewRegistry()
	require.NoError(t, reg.AddProvider(tr.ProviderInfo{Name: tr.ProviderOllama, BaseURL: "http://localhost:11434"}))

	assert.True(t, reg.IsKnown(tr.ProviderOllama))
	assert.False(t, reg.Available(tr.ProviderOllama))
	assert.Empty(t, reg.BindingsFor(tr.ProviderOllama))

	info, ok := reg.Info(tr.ProviderOllama)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434", info.BaseURL)
}

func TestParseProviderAndTier(t *testing.T) {
	p, err := tr.ParseProvider(" Hybrid ")
	require.NoError(t, err)
	assert.Equal(t, tr.ProviderHybrid, p)

	_, err = tr.ParseProvider("gemini")
	assert.ErrorIs(t, err, tr.ErrUnknownProvider)

	tier, err := tr.ParseTier("PREMIUM")
	require.NoError(t, err)
	assert.Equal(t, tr.TierPremium, tier)

	_, err = tr.ParseTier("ultra")
	assert.ErrorIs(t, err, tr.ErrUnknownTier)

	next, ok := tr.TierPremium.Cheaper()
	assert.True(t, ok)
	assert.Equal(t, tr.TierCapable, next)
	_, ok = tr.TierCheap.Cheaper()
	assert.False(t, ok)

	assert.True(t, tr.ProviderAnthropic.RequiresKey())
	assert.False(t, tr.ProviderOllama.RequiresKey())
	assert.True(t, tr.ProviderOllama.Local())
}
