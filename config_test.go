package tierrouter_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tr "github.com/ineyio/tierrouter"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv blanks the variables LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TIERROUTE_DEFAULT_PROVIDER", "TIERROUTE_PREFERENCE", "TIERROUTE_AUTO_FAILOVER",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OLLAMA_API_KEY", "OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig_Builds(t *testing.T) {
	cfg := tr.DefaultConfig()
	require.NoError(t, cfg.Validate())

	reg, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, []tr.Provider{tr.ProviderAnthropic, tr.ProviderOpenAI, tr.ProviderOllama}, reg.Providers())

	total := 0
	for _, p := range reg.Providers() {
		total += len(reg.BindingsFor(p))
	}
	assert.Equal(t, 9, total)

	b, ok := reg.Binding(tr.ProviderAnthropic, tr.TierCapable)
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4-20250514", b.Model)
	assert.True(t, price("3").Equal(b.InputPrice))
	assert.True(t, price("15").Equal(b.OutputPrice))

	b, ok = reg.Binding(tr.ProviderAnthropic, tr.TierCheap)
	require.True(t, ok)
	assert.True(t, price("0.8").Equal(b.InputPrice))

	b, ok = reg.Binding(tr.ProviderOllama, tr.TierCheap)
	require.True(t, ok)
	assert.True(t, b.Free())

	info, _ := reg.Info(tr.ProviderOllama)
	assert.Equal(t, tr.DefaultOllamaURL, info.BaseURL)
}

func TestLoadConfig_YAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-ant-from-env")

	path := writeConfig(t, "tierroute.yaml", `
default_provider: anthropic
preference: [anthropic, ollama]
policy: cost_first
auto_failover: true
max_failover_attempts: 2
probe:
  timeout: 500ms
  ttl: 1m
classifier:
  short_input_chars: 100
  tasks:
    release_notes: premium
providers:
  - name: anthropic
    api_key: ${TEST_ANTHROPIC_KEY}
    bindings:
      capable:
        model: claude-sonnet-4-20250514
        input_price: 3
        output_price: "15.00"
  - name: ollama
    base_url: http://gpu-box:11434
    bindings:
      cheap:
        model: llama3.2:3b
`)

	cfg, err := tr.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.DefaultProvider)
	assert.Equal(t, []string{"anthropic", "ollama"}, cfg.Preference)
	assert.Equal(t, "cost_first", cfg.Policy)
	assert.True(t, cfg.AutoFailover)
	assert.Equal(t, 2, cfg.MaxFailoverAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Probe.Timeout)
	assert.Equal(t, time.Minute, cfg.Probe.TTL)
	assert.Equal(t, 100, cfg.Classifier.ShortInputChars)

	pc, ok := cfg.Provider(tr.ProviderAnthropic)
	require.True(t, ok)
	assert.Equal(t, "sk-ant-from-env", pc.APIKey)

	pc, ok = cfg.Provider(tr.ProviderOllama)
	require.True(t, ok)
	assert.Equal(t, "http://gpu-box:11434", pc.BaseURL)

	assert.Equal(t, tr.TierPremium, cfg.NewClassifier().Classify("release_notes", ""))
	assert.Len(t, cfg.FacadeOptions(), 2)

	reg, err := cfg.Build()
	require.NoError(t, err)
	b, ok := reg.Binding(tr.ProviderAnthropic, tr.TierCapable)
	require.True(t, ok)
	assert.True(t, price("3").Equal(b.InputPrice))
	assert.True(t, price("15").Equal(b.OutputPrice))
	assert.Len(t, cfg.RouterOptions(), 2)
}

func TestLoadConfig_TOML(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	path := writeConfig(t, "tierroute.toml", `
default_provider = "hybrid"
preference = ["openai"]

[probe]
timeout = "1s"

[classifier.tiers]
premium = ["audit"]

[[providers]]
name = "openai"

[providers.bindings.cheap]
model = "gpt-4o-mini"
input_price = "0.15"
output_price = 0.60

[providers.bindings.premium]
model = "gpt-5.2"
input_price = 15.0
output_price = 60.0
`)

	cfg, err := tr.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Probe.Timeout)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-openai", cfg.Providers[0].APIKey)

	reg, err := cfg.Build()
	require.NoError(t, err)
	assert.Len(t, reg.BindingsFor(tr.ProviderOpenAI), 2)

	b, ok := reg.Binding(tr.ProviderOpenAI, tr.TierCheap)
	require.True(t, ok)
	assert.Equal(t, "0.15", b.InputPrice.String())
	assert.True(t, price("0.6").Equal(b.OutputPrice), "output %s", b.OutputPrice)

	assert.Equal(t, tr.TierPremium, cfg.NewClassifier().Classify("security_audit", ""))
	assert.Equal(t, map[tr.Tier][]string{tr.TierPremium: {"audit"}}, cfg.ClassifierTable())
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)

	_, err := tr.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = tr.LoadConfig(writeConfig(t, "bad.yaml", "providers: [unclosed"))
	assert.Error(t, err)

	_, err = tr.LoadConfig(writeConfig(t, "empty.yaml", "policy: free_first\n"))
	assert.ErrorIs(t, err, tr.ErrConfiguration)
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"TIERROUTE_DEFAULT_PROVIDER": "openai",
		"TIERROUTE_PREFERENCE":       "openai, anthropic,,",
		"TIERROUTE_AUTO_FAILOVER":    "true",
		"ANTHROPIC_API_KEY":          "sk-ant",
		"OLLAMA_HOST":                "10.0.0.5:11434",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := tr.DefaultConfig()
	cfg.Providers[2].BaseURL = ""
	cfg.Providers[1].APIKey = "sk-configured"
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, []string{"openai", "anthropic"}, cfg.Preference)
	assert.True(t, cfg.AutoFailover)
	assert.Equal(t, "sk-ant", cfg.Providers[0].APIKey)
	assert.Equal(t, "sk-configured", cfg.Providers[1].APIKey, "config value wins over env")
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Providers[2].BaseURL)

	env["TIERROUTE_AUTO_FAILOVER"] = "maybe"
	err := cfg.ApplyEnv(lookup)
	var ce *tr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "TIERROUTE_AUTO_FAILOVER", ce.Field)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*tr.Config)
		field string
	}{
		{"no providers", func(c *tr.Config) { c.Providers = nil }, "providers"},
		{"bad default", func(c *tr.Config) { c.DefaultProvider = "gemini" }, "default_provider"},
		{"bad preference", func(c *tr.Config) { c.Preference = []string{"ollama", "mistral"} }, "preference[1]"},
		{"negative failover", func(c *tr.Config) { c.MaxFailoverAttempts = -1 }, "max_failover_attempts"},
		{"negative ttl", func(c *tr.Config) { c.Probe.TTL = -time.Second }, "probe"},
		{"bad classifier tier", func(c *tr.Config) { c.Classifier.Tiers = map[string][]string{"ultra": {"x"}} }, "classifier.tiers"},
		{"bad task tier", func(c *tr.Config) { c.Classifier.Tasks = map[string]string{"notes": "gold"} }, "classifier.tasks.notes"},
		{"unknown provider", func(c *tr.Config) { c.Providers[0].Name = "gemini" }, "providers[0]"},
		{"hybrid provider", func(c *tr.Config) { c.Providers[0].Name = "hybrid" }, "providers[0]"},
		{"duplicate provider", func(c *tr.Config) { c.Providers[1].Name = "anthropic" }, "providers[1]"},
		{"bad tier key", func(c *tr.Config) {
			c.Providers[0].Bindings = map[string]tr.BindingConfig{"gold": {Model: "m"}}
		}, "providers[0].bindings.gold"},
		{"empty model", func(c *tr.Config) {
			c.Providers[0].Bindings = map[string]tr.BindingConfig{"cheap": {}}
		}, "providers[0].bindings.cheap"},
		{"negative price", func(c *tr.Config) {
			c.Providers[0].Bindings = map[string]tr.BindingConfig{"cheap": {Model: "m", InputPrice: price("-1")}}
		}, "providers[0].bindings.cheap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tr.DefaultConfig()
			tt.edit(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tr.ErrConfiguration)

			var ce *tr.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)

			_, err = cfg.Build()
			assert.Error(t, err)
		})
	}
}

func TestConfig_Checkers(t *testing.T) {
	cfg := tr.DefaultConfig()
	cfg.Providers[0].APIKey = "sk-ant"

	checkers := cfg.Checkers(nil)
	require.Len(t, checkers, 3)
	assert.Equal(t, tr.CredentialCheck{Key: "sk-ant"}, checkers[tr.ProviderAnthropic])
	assert.Equal(t, tr.CredentialCheck{}, checkers[tr.ProviderOpenAI])
	assert.Equal(t, tr.HTTPCheck{URL: tr.DefaultOllamaURL}, checkers[tr.ProviderOllama])

	reg, err := cfg.Build()
	require.NoError(t, err)
	p := tr.NewProber(reg, tr.WithChecker(tr.ProviderAnthropic, checkers[tr.ProviderAnthropic]),
		tr.WithChecker(tr.ProviderOpenAI, checkers[tr.ProviderOpenAI]))
	assert.Equal(t, tr.HealthHealthy, p.Probe(context.Background(), tr.ProviderAnthropic))
	assert.Equal(t, tr.HealthUnreachable, p.Probe(context.Background(), tr.ProviderOpenAI))
}
