package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	tr "github.com/ineyio/tierrouter"
)

func interactCmd(g *globalOpts) *cobra.Command {
	var (
		userID   string
		taskType string
		tierName string
		provider string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "interact [input...]",
		Short: "Route one request and print the response",
		Long: `Classify, route and send one request, then record its cost.

Input is read from the arguments, or from stdin when none are given.

Examples:
  tierroute interact --task summarize "$(cat notes.md)"
  tierroute interact --tier premium "Design a rate limiter"
  echo "fix this" | tierroute interact --provider ollama`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := joinArgs(args)
			if input == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				input = string(data)
			}

			req := tr.TaskRequest{
				UserID:   userID,
				Input:    input,
				TaskType: taskType,
			}
			if tierName != "" {
				t, err := tr.ParseTier(tierName)
				if err != nil {
					return err
				}
				req.Tier = &t
			}
			if provider != "" {
				p, err := tr.ParseProvider(provider)
				if err != nil {
					return err
				}
				req.Provider = p
			}

			a, err := newApp(g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := a.facade.Interact(ctx, req)
			if err != nil {
				var ie *tr.InteractionError
				if errors.As(err, &ie) {
					a.logger.Error().
						Err(ie.Err).
						Str("provider", string(ie.Decision.Provider)).
						Str("model", ie.Decision.Binding.Model).
						Int("attempts", ie.Attempts).
						Bool("retryable", tr.IsRetryable(ie.Err)).
						Msg("interaction failed")
				}
				return err
			}

			out := cmd.OutOrStdout()
			if g.jsonOut {
				return writeJSON(out, map[string]any{
					"output":         res.Output,
					"provider":       res.Decision.Provider,
					"model":          res.Decision.Binding.Model,
					"tier":           res.Decision.Tier,
					"requested_tier": res.Decision.RequestedTier,
					"reason":         res.Decision.Reason,
					"attempts":       res.Attempts,
					"record":         res.Record,
				})
			}
			fmt.Fprint(out, renderInteraction(res))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&userID, "user", "u", defaultUser(), "User id the cost is recorded against")
	f.StringVarP(&taskType, "task", "t", "", "Task type used for classification (e.g. summarize, code_review)")
	f.StringVar(&tierName, "tier", "", "Tier override: cheap, capable or premium")
	f.StringVarP(&provider, "provider", "p", "", "Provider override (default from config or 'provider set')")
	f.DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout (0 disables)")
	return cmd
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}
