package main

import (
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	tr "github.com/ineyio/tierrouter"
	"github.com/ineyio/tierrouter/ledger/sqlite"
	"github.com/ineyio/tierrouter/meter"
	"github.com/ineyio/tierrouter/policy"
	"github.com/ineyio/tierrouter/provider/anthropic"
	"github.com/ineyio/tierrouter/provider/openaicompat"
)

type globalOpts struct {
	configPath string
	statePath  string
	ledgerPath string
	logLevel   string
	noColor    bool
	jsonOut    bool
}

// app holds the wired router stack for one CLI invocation.
type app struct {
	cfg      tr.Config
	registry *tr.Registry
	prober   *tr.Prober
	router   *tr.Router
	facade   *tr.Facade
	ledger   *sqlite.Store
	logger   zerolog.Logger
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen, NoColor: color.NoColor}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// loadConfig reads the config file, or the built-in defaults with
// environment overrides when no file is given. The persisted default
// provider applies unless TIERROUTE_DEFAULT_PROVIDER is set.
func loadConfig(g *globalOpts) (tr.Config, error) {
	var cfg tr.Config
	if g.configPath == "" {
		cfg = tr.DefaultConfig()
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return cfg, err
		}
	} else {
		var err error
		if cfg, err = tr.LoadConfig(g.configPath); err != nil {
			return cfg, err
		}
	}

	if _, pinned := os.LookupEnv("TIERROUTE_DEFAULT_PROVIDER"); !pinned {
		st, err := loadState(g.statePath)
		if err != nil {
			return cfg, err
		}
		if st.DefaultProvider != "" {
			cfg.DefaultProvider = st.DefaultProvider
		}
	}

	return cfg, cfg.Validate()
}

// newApp wires config → registry → prober → router → facade. withLedger
// opens the SQLite ledger so completed interactions persist.
func newApp(g *globalOpts, withLedger bool) (*app, error) {
	logger := newLogger(g.logLevel)

	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	reg, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	pol, err := policy.ByName(cfg.Policy)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 5 * time.Minute}
	m := meter.NewZerologMeter(logger)

	a := &app{
		cfg:      cfg,
		registry: reg,
		prober:   tr.NewProber(reg, append(cfg.ProberOptions(httpClient), tr.WithProbeMeter(m))...),
		router:   tr.NewRouter(reg, append(cfg.RouterOptions(), tr.WithPolicy(pol))...),
		logger:   logger,
	}

	opts := append(cfg.FacadeOptions(), tr.WithMeter(m))
	if withLedger {
		store, err := sqlite.Open(g.ledgerPath)
		if err != nil {
			return nil, err
		}
		a.ledger = store
		opts = append(opts, tr.WithLedger(store))
	}

	a.facade, err = tr.NewFacade(reg, a.prober, a.router, buildClients(cfg, reg, httpClient), opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Debug().
		Str("default_provider", string(a.router.DefaultProvider())).
		Strs("providers", providerNames(reg.Providers())).
		Str("policy", cfg.Policy).
		Bool("auto_failover", cfg.AutoFailover).
		Msg("router ready")

	return a, nil
}

func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close ledger")
		}
	}
}

// buildClients creates the HTTP client adapter for every registered provider.
func buildClients(cfg tr.Config, reg *tr.Registry, hc *http.Client) map[tr.Provider]tr.Client {
	clients := make(map[tr.Provider]tr.Client)
	for _, p := range reg.Providers() {
		pc, _ := cfg.Provider(p)
		switch p {
		case tr.ProviderAnthropic:
			opts := []anthropic.Option{anthropic.WithHTTPClient(hc)}
			if pc.BaseURL != "" {
				opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
			}
			clients[p] = anthropic.New(pc.APIKey, opts...)
		case tr.ProviderOpenAI:
			opts := []openaicompat.Option{openaicompat.WithHTTPClient(hc), openaicompat.WithAPIKey(pc.APIKey)}
			if pc.BaseURL != "" {
				clients[p] = openaicompat.New(pc.BaseURL, opts...)
			} else {
				clients[p] = openaicompat.NewOpenAI(opts...)
			}
		case tr.ProviderOllama:
			clients[p] = openaicompat.NewOllama(pc.BaseURL, openaicompat.WithHTTPClient(hc))
		}
	}
	return clients
}

func providerNames(ps []tr.Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
