package tierrouter

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultOllamaURL is the local Ollama daemon address.
const DefaultOllamaURL = "http://localhost:11434"

// Config is the top-level router configuration.
type Config struct {
	DefaultProvider     string           `yaml:"default_provider" toml:"default_provider"`
	Preference          []string         `yaml:"preference" toml:"preference"`
	Policy              string           `yaml:"policy" toml:"policy"`
	AutoFailover        bool             `yaml:"auto_failover" toml:"auto_failover"`
	MaxFailoverAttempts int              `yaml:"max_failover_attempts" toml:"max_failover_attempts"`
	Probe               ProbeConfig      `yaml:"probe" toml:"probe"`
	Classifier          ClassifierConfig `yaml:"classifier" toml:"classifier"`
	Providers           []ProviderConfig `yaml:"providers" toml:"providers"`
}

// ProbeConfig configures availability probing.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	TTL     time.Duration `yaml:"ttl" toml:"ttl"`
}

// ClassifierConfig is the keyword → tier table.
type ClassifierConfig struct {
	ShortInputChars int                 `yaml:"short_input_chars" toml:"short_input_chars"`
	Tiers           map[string][]string `yaml:"tiers" toml:"tiers"`
	Tasks           map[string]string   `yaml:"tasks" toml:"tasks"`
}

// ProviderConfig configures one provider and its tier bindings.
type ProviderConfig struct {
	Name     string                   `yaml:"name" toml:"name"`
	BaseURL  string                   `yaml:"base_url" toml:"base_url"`
	APIKey   string                   `yaml:"api_key" toml:"api_key"`
	Bindings map[string]BindingConfig `yaml:"bindings" toml:"bindings"`
}

// BindingConfig binds a tier to a model. Prices are dollars per million
// tokens, parsed straight into decimals; quote them in TOML to keep every
// digit.
type BindingConfig struct {
	Model       string  `yaml:"model" toml:"model"`
	InputPrice  decimal.Decimal `yaml:"input_price" toml:"input_price"`
	OutputPrice decimal.Decimal `yaml:"output_price" toml:"output_price"`
}

// DefaultConfig returns a config with the stock anthropic, openai and ollama
// model tables, routing in hybrid mode with local models preferred.
func DefaultConfig() Config {
	return Config{
		DefaultProvider:     string(ProviderHybrid),
		Preference:          []string{"ollama", "anthropic", "openai"},
		Policy:              "preference",
		MaxFailoverAttempts: 1,
		Probe: ProbeConfig{
			Timeout: defaultProbeTimeout,
			TTL:     defaultProbeTTL,
		},
		Classifier: ClassifierConfig{ShortInputChars: DefaultShortInputChars},
		Providers: []ProviderConfig{
			{
				Name: "anthropic",
				Bindings: map[string]BindingConfig{
					"cheap":   {Model: "claude-3-5-haiku-20241022", InputPrice: usd("0.80"), OutputPrice: usd("4.00")},
					"capable": {Model: "claude-sonnet-4-20250514", InputPrice: usd("3.00"), OutputPrice: usd("15.00")},
					"premium": {Model: "claude-opus-4-5-20251101", InputPrice: usd("15.00"), OutputPrice: usd("75.00")},
				},
			},
			{
				Name: "openai",
				Bindings: map[string]BindingConfig{
					"cheap":   {Model: "gpt-4o-mini", InputPrice: usd("0.15"), OutputPrice: usd("0.60")},
					"capable": {Model: "gpt-4o", InputPrice: usd("2.50"), OutputPrice: usd("10.00")},
					"premium": {Model: "gpt-5.2", InputPrice: usd("15.00"), OutputPrice: usd("60.00")},
				},
			},
			{
				Name:    "ollama",
				BaseURL: DefaultOllamaURL,
				Bindings: map[string]BindingConfig{
					"cheap":   {Model: "llama3.2:3b"},
					"capable": {Model: "llama3.2:latest"},
					"premium": {Model: "llama3.2:latest"},
				},
			},
		},
	}
}

func usd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// LoadConfig reads and parses a YAML or TOML (by .toml extension) config
// file. ${VAR} references are expanded before parsing, TIERROUTE_*
// environment overrides are applied after.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("tierrouter: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("tierrouter: parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("tierrouter: parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv applies environment overrides:
//
//	TIERROUTE_DEFAULT_PROVIDER   default provider
//	TIERROUTE_PREFERENCE         comma-separated preference order
//	TIERROUTE_AUTO_FAILOVER      true/false
//	<PROVIDER>_API_KEY           api key when the config leaves it empty
//	OLLAMA_HOST                  ollama base url when the config leaves it empty
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TIERROUTE_DEFAULT_PROVIDER"); ok && v != "" {
		c.DefaultProvider = v
	}
	if v, ok := lookup("TIERROUTE_PREFERENCE"); ok && v != "" {
		c.Preference = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Preference = append(c.Preference, p)
			}
		}
	}
	if v, ok := lookup("TIERROUTE_AUTO_FAILOVER"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return configErrorf("TIERROUTE_AUTO_FAILOVER", "invalid bool %q", v)
		}
		c.AutoFailover = b
	}

	for i := range c.Providers {
		pc := &c.Providers[i]
		if pc.APIKey == "" {
			if v, ok := lookup(strings.ToUpper(pc.Name) + "_API_KEY"); ok {
				pc.APIKey = v
			}
		}
		if pc.BaseURL == "" && strings.EqualFold(pc.Name, string(ProviderOllama)) {
			if v, ok := lookup("OLLAMA_HOST"); ok && v != "" {
				if !strings.Contains(v, "://") {
					v = "http://" + v
				}
				pc.BaseURL = v
			}
		}
	}
	return nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return configErrorf("providers", "at least one provider is required")
	}

	if c.DefaultProvider != "" {
		if _, err := ParseProvider(c.DefaultProvider); err != nil {
			return configErrorf("default_provider", "%v", err)
		}
	}
	for i, p := range c.Preference {
		if _, err := ParseProvider(p); err != nil {
			return configErrorf(fmt.Sprintf("preference[%d]", i), "%v", err)
		}
	}
	if c.MaxFailoverAttempts < 0 {
		return configErrorf("max_failover_attempts", "must not be negative")
	}
	if c.Probe.Timeout < 0 || c.Probe.TTL < 0 {
		return configErrorf("probe", "durations must not be negative")
	}

	for tier := range c.Classifier.Tiers {
		if _, err := ParseTier(tier); err != nil {
			return configErrorf("classifier.tiers", "%v", err)
		}
	}
	for task, tier := range c.Classifier.Tasks {
		if _, err := ParseTier(tier); err != nil {
			return configErrorf("classifier.tasks."+task, "%v", err)
		}
	}

	seen := make(map[Provider]bool, len(c.Providers))
	for i, pc := range c.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		p, err := ParseProvider(pc.Name)
		if err != nil {
			return configErrorf(field, "%v", err)
		}
		if p == ProviderHybrid {
			return configErrorf(field, "%q is a meta-provider and cannot hold bindings", p)
		}
		if seen[p] {
			return configErrorf(field, "duplicate provider %q", p)
		}
		seen[p] = true

		for tier, b := range pc.Bindings {
			bf := field + ".bindings." + tier
			if _, err := ParseTier(tier); err != nil {
				return configErrorf(bf, "%v", err)
			}
			if b.Model == "" {
				return configErrorf(bf, "model id is empty")
			}
			if b.InputPrice.IsNegative() || b.OutputPrice.IsNegative() {
				return configErrorf(bf, "negative price")
			}
		}
	}

	return nil
}

// Build validates the config and returns a populated Registry.
func (c Config) Build() (*Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, pc := range c.Providers {
		p, _ := ParseProvider(pc.Name)
		if err := reg.AddProvider(ProviderInfo{Name: p, BaseURL: pc.BaseURL, RequiresKey: p.RequiresKey()}); err != nil {
			return nil, err
		}
		for _, tier := range Tiers {
			b, ok := pc.Bindings[tier.String()]
			if !ok {
				continue
			}
			err := reg.Register(p, tier, b.Model, b.InputPrice, b.OutputPrice)
			if err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

// Checkers returns the availability checker for every configured provider:
// a credential check for key-based providers, an HTTP check for local ones.
func (c Config) Checkers(client *http.Client) map[Provider]Checker {
	out := make(map[Provider]Checker, len(c.Providers))
	for _, pc := range c.Providers {
		p, err := ParseProvider(pc.Name)
		if err != nil || p == ProviderHybrid {
			continue
		}
		if p.Local() {
			url := pc.BaseURL
			if url == "" {
				url = DefaultOllamaURL
			}
			out[p] = HTTPCheck{URL: url, Client: client}
			continue
		}
		out[p] = CredentialCheck{Key: pc.APIKey}
	}
	return out
}

// Provider returns the named provider's config.
func (c Config) Provider(p Provider) (ProviderConfig, bool) {
	for _, pc := range c.Providers {
		if strings.EqualFold(pc.Name, string(p)) {
			return pc, true
		}
	}
	return ProviderConfig{}, false
}

// ClassifierTable converts the configured keyword table. An empty table
// yields nil, which selects the defaults.
func (c Config) ClassifierTable() map[Tier][]string {
	if len(c.Classifier.Tiers) == 0 {
		return nil
	}
	out := make(map[Tier][]string, len(c.Classifier.Tiers))
	for name, words := range c.Classifier.Tiers {
		tier, err := ParseTier(name)
		if err != nil {
			continue
		}
		out[tier] = words
	}
	return out
}

// NewClassifier builds the configured classifier, including pinned tasks.
func (c Config) NewClassifier() *Classifier {
	cl := NewClassifier(c.ClassifierTable(), c.Classifier.ShortInputChars)
	for task, name := range c.Classifier.Tasks {
		if tier, err := ParseTier(name); err == nil {
			cl.AddTaskRouting(task, tier)
		}
	}
	return cl
}

// RouterOptions returns the router options derived from the config. The
// policy is not included; see package policy.
func (c Config) RouterOptions() []RouterOption {
	var opts []RouterOption
	if c.DefaultProvider != "" {
		if p, err := ParseProvider(c.DefaultProvider); err == nil {
			opts = append(opts, WithDefaultProvider(p))
		}
	}
	var pref []Provider
	for _, s := range c.Preference {
		if p, err := ParseProvider(s); err == nil {
			pref = append(pref, p)
		}
	}
	if len(pref) > 0 {
		opts = append(opts, WithPreference(pref...))
	}
	return opts
}

// ProberOptions returns the prober options derived from the config.
func (c Config) ProberOptions(client *http.Client) []ProberOption {
	opts := []ProberOption{WithCheckers(c.Checkers(client))}
	if c.Probe.Timeout > 0 {
		opts = append(opts, WithProbeTimeout(c.Probe.Timeout))
	}
	if c.Probe.TTL > 0 {
		opts = append(opts, WithProbeTTL(c.Probe.TTL))
	}
	return opts
}

// FacadeOptions returns the facade options derived from the config.
func (c Config) FacadeOptions() []FacadeOption {
	opts := []FacadeOption{WithClassifier(c.NewClassifier())}
	if c.AutoFailover {
		opts = append(opts, WithAutoFailover(c.MaxFailoverAttempts))
	}
	return opts
}
