// Package main provides the tierroute CLI: provider status, classification,
// routed interaction and cost reports over the tierrouter library.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var g globalOpts

	cmd := &cobra.Command{
		Use:   "tierroute",
		Short: "Tiered multi-provider LLM routing",
		Long: `tierroute picks a model per request by cost tier (cheap, capable, premium)
across Anthropic, OpenAI and a local Ollama daemon, and tracks what each
request cost against the premium baseline.

Use 'tierroute provider status' to see which providers are usable.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file (.yaml or .toml); built-in defaults when empty")
	pf.StringVar(&g.statePath, "state", defaultPath("state.yaml"), "State file written by 'provider set'")
	pf.StringVar(&g.ledgerPath, "ledger", defaultPath("ledger.db"), "SQLite cost ledger")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&g.jsonOut, "json", false, "Output as JSON")

	cmd.AddCommand(
		providerCmd(&g),
		classifyCmd(&g),
		interactCmd(&g),
		costsCmd(&g),
	)
	return cmd
}
