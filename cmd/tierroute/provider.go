package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	tr "github.com/ineyio/tierrouter"
)

func providerCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Inspect and select LLM providers",
	}
	cmd.AddCommand(
		providerStatusCmd(g),
		providerListCmd(g),
		providerSetCmd(g),
	)
	return cmd
}

func providerStatusCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe every provider and show its health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			health := a.facade.Health(cmd.Context())
			out := cmd.OutOrStdout()
			if g.jsonOut {
				return writeJSON(out, healthJSON(health))
			}
			fmt.Fprint(out, renderStatus(a.registry, health, a.router.DefaultProvider()))
			return nil
		},
	}
}

func providerListCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured model bindings and prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if g.jsonOut {
				var rows []bindingJSON
				for _, p := range a.registry.Providers() {
					for _, b := range a.registry.BindingsFor(p) {
						rows = append(rows, bindingJSON{
							Provider:    p,
							Tier:        b.Tier,
							Model:       b.Model,
							InputPrice:  b.InputPrice.String(),
							OutputPrice: b.OutputPrice.String(),
						})
					}
				}
				return writeJSON(out, rows)
			}
			fmt.Fprintln(out, renderBindings(a.registry))
			return nil
		},
	}
}

func providerSetCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider>",
		Short: "Set the default provider (anthropic, openai, ollama or hybrid)",
		Long: `Set the provider used when a request names none.

'hybrid' routes across every registered provider in preference order.

Examples:
  tierroute provider set hybrid
  tierroute provider set ollama`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := tr.ParseProvider(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if p != tr.ProviderHybrid {
				if _, ok := cfg.Provider(p); !ok {
					return fmt.Errorf("%w: %q is not configured", tr.ErrUnknownProvider, p)
				}
			}

			st, err := loadState(g.statePath)
			if err != nil {
				return err
			}
			st.DefaultProvider = string(p)
			if err := saveState(g.statePath, st); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Default provider set to %s\n", color.CyanString(string(p)))
			return nil
		},
	}
}

type bindingJSON struct {
	Provider    tr.Provider `json:"provider"`
	Tier        tr.Tier     `json:"tier"`
	Model       string      `json:"model"`
	InputPrice  string      `json:"input_price"`
	OutputPrice string      `json:"output_price"`
}

func healthJSON(h map[tr.Provider]tr.HealthStatus) map[string]string {
	out := make(map[string]string, len(h))
	for p, s := range h {
		out[string(p)] = s.String()
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
