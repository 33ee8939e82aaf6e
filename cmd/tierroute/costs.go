package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	tr "github.com/ineyio/tierrouter"
	"github.com/ineyio/tierrouter/ledger/sqlite"
)

func costsCmd(g *globalOpts) *cobra.Command {
	var (
		userID string
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show recorded costs and savings against the premium tier",
		Long: `Summarize the cost ledger: requests, tokens, actual spend, what the same
calls would have cost at the premium tier, and the difference.

Examples:
  tierroute costs
  tierroute costs --user alice --since 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.Open(g.ledgerPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}

			users := []string{userID}
			if userID == "" {
				if users, err = store.Users(ctx); err != nil {
					return err
				}
			}

			var records []tr.CostRecord
			for _, u := range users {
				recs, err := store.Records(ctx, u, from)
				if err != nil {
					return err
				}
				records = append(records, recs...)
			}

			s := tr.Summarize(records)
			s.UserID = userID

			out := cmd.OutOrStdout()
			if g.jsonOut {
				return writeJSON(out, summaryJSON(s))
			}
			fmt.Fprintln(out, renderSummary(s))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Only this user (default: everyone)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only records newer than this (e.g. 24h)")
	cmd.AddCommand(costsCompareCmd(g))
	return cmd
}

func costsCompareCmd(g *globalOpts) *cobra.Command {
	var in, out int64

	cmd := &cobra.Command{
		Use:   "compare <provider>",
		Short: "Price one call shape at every tier of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := tr.ParseProvider(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			reg, err := cfg.Build()
			if err != nil {
				return err
			}
			if !reg.IsKnown(p) {
				return fmt.Errorf("%w: %q is not configured", tr.ErrUnknownProvider, p)
			}

			costs, err := tr.CompareTiers(reg, p, in, out)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if g.jsonOut {
				m := make(map[string]string, len(costs))
				for tier, c := range costs {
					m[tier.String()] = c.String()
				}
				return writeJSON(w, m)
			}
			fmt.Fprintln(w, renderComparison(p, in, out, costs))
			return nil
		},
	}

	cmd.Flags().Int64Var(&in, "input-tokens", 1000, "Input tokens")
	cmd.Flags().Int64Var(&out, "output-tokens", 500, "Output tokens")
	return cmd
}

func summaryJSON(s tr.Summary) map[string]any {
	byTier := make(map[string]string, len(s.ByTier))
	for t, b := range s.ByTier {
		byTier[t.String()] = b.Cost.String()
	}
	byProvider := make(map[string]string, len(s.ByProvider))
	for p, b := range s.ByProvider {
		byProvider[string(p)] = b.Cost.String()
	}
	return map[string]any{
		"user":            s.UserID,
		"requests":        s.Requests,
		"input_tokens":    s.InputTokens,
		"output_tokens":   s.OutputTokens,
		"total":           s.Total.String(),
		"baseline":        s.Baseline.String(),
		"savings":         s.Savings.String(),
		"savings_percent": s.SavingsPercent.String(),
		"fallbacks":       s.Fallbacks,
		"estimated":       s.Estimated,
		"by_tier":         byTier,
		"by_provider":     byProvider,
	}
}
