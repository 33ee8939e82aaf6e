package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func classifyCmd(g *globalOpts) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "classify <task-type>",
		Short: "Show which tier a task type maps to",
		Long: `Show which tier a task type is classified into, and why.

Examples:
  tierroute classify summarize
  tierroute classify system_design
  tierroute classify "" --input "short question"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}

			c := cfg.NewClassifier().Explain(args[0], input)
			out := cmd.OutOrStdout()
			if g.jsonOut {
				return writeJSON(out, map[string]any{
					"task_type": args[0],
					"tier":      c.Tier.String(),
					"keyword":   c.Keyword,
					"fallback":  c.Fallback,
				})
			}
			fmt.Fprint(out, renderClassification(args[0], c))
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Input text (used when no keyword matches)")
	return cmd
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
