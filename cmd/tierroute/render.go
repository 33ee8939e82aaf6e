package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	tr "github.com/ineyio/tierrouter"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	savedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

func statusMark(h tr.HealthStatus) string {
	switch h {
	case tr.HealthHealthy:
		return color.GreenString("✓")
	case tr.HealthUnreachable:
		return color.RedString("✗")
	default:
		return color.YellowString("?")
	}
}

func statusText(h tr.HealthStatus) string {
	switch h {
	case tr.HealthHealthy:
		return color.GreenString(h.String())
	case tr.HealthUnreachable:
		return color.RedString(h.String())
	default:
		return color.YellowString(h.String())
	}
}

// renderStatus formats provider health, one line per registered provider.
func renderStatus(reg *tr.Registry, health map[tr.Provider]tr.HealthStatus, def tr.Provider) string {
	var sb strings.Builder
	sb.WriteString(color.CyanString("Providers\n"))
	sb.WriteString(strings.Repeat("─", 48) + "\n")

	for _, p := range reg.Providers() {
		marker := ""
		if p == def {
			marker = color.HiBlackString(" (default)")
		}
		fmt.Fprintf(&sb, "%s %-10s %-22s %d tier(s)%s\n",
			statusMark(health[p]), p, statusText(health[p]), len(reg.BindingsFor(p)), marker)
	}

	if def == tr.ProviderHybrid {
		healthy := 0
		for _, p := range reg.Providers() {
			if health[p] == tr.HealthHealthy {
				healthy++
			}
		}
		fmt.Fprintf(&sb, "\nMode: %s (routing across %d healthy provider(s))\n", color.CyanString("hybrid"), healthy)
	}
	return sb.String()
}

// renderBindings formats the model table for every registered provider.
func renderBindings(reg *tr.Registry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROVIDER", "TIER", "MODEL", "INPUT $/M", "OUTPUT $/M")

	for _, p := range reg.Providers() {
		for _, b := range reg.BindingsFor(p) {
			t.Row(string(p), b.Tier.String(), b.Model, priceText(b.InputPrice), priceText(b.OutputPrice))
		}
	}
	return t.Render()
}

func priceText(d decimal.Decimal) string {
	if d.IsZero() {
		return "free"
	}
	return d.StringFixed(2)
}

func dollars(d decimal.Decimal) string {
	return "$" + d.StringFixed(4)
}

// renderClassification formats one classifier result.
func renderClassification(taskType string, c tr.Classification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s → %s\n", taskType, color.CyanString(c.Tier.String()))
	switch {
	case c.Fallback:
		sb.WriteString(color.YellowString("  no keyword matched; default tier used\n"))
	default:
		fmt.Fprintf(&sb, "  matched %q\n", c.Keyword)
	}
	return sb.String()
}

// renderInteraction formats an interaction result.
func renderInteraction(res tr.InteractionResult) string {
	d := res.Decision
	var sb strings.Builder
	sb.WriteString(res.Output)
	if !strings.HasSuffix(res.Output, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "%s %s/%s  tier=%s reason=%s attempts=%d\n",
		color.HiBlackString("routed:"), d.Provider, d.Binding.Model, d.Tier, d.Reason, res.Attempts)
	if d.Deescalated() {
		sb.WriteString(color.YellowString("warning: requested %s tier unavailable, served at %s\n", d.RequestedTier, d.Tier))
	}

	est := ""
	if res.Record.Estimated {
		est = color.HiBlackString(" (estimated)")
	}
	fmt.Fprintf(&sb, "%s %d in / %d out%s  cost %s\n",
		color.HiBlackString("tokens:"), res.Usage.InputTokens, res.Usage.OutputTokens, est, dollars(res.Record.Cost))
	return sb.String()
}

// renderSummary formats a cost summary as a boxed report.
func renderSummary(s tr.Summary) string {
	var sb strings.Builder
	who := s.UserID
	if who == "" {
		who = "all users"
	}
	sb.WriteString(titleStyle.Render("Cost report: "+who) + "\n\n")

	if s.Requests == 0 {
		sb.WriteString(dimStyle.Render("No requests recorded"))
		return boxStyle.Render(sb.String())
	}

	fmt.Fprintf(&sb, "Requests:  %d (%d fallback, %d estimated)\n", s.Requests, s.Fallbacks, s.Estimated)
	fmt.Fprintf(&sb, "Tokens:    %d in / %d out\n", s.InputTokens, s.OutputTokens)
	fmt.Fprintf(&sb, "Actual:    %s\n", dollars(s.Total))
	fmt.Fprintf(&sb, "Baseline:  %s (premium)\n", dollars(s.Baseline))
	fmt.Fprintf(&sb, "Saved:     %s\n", savedStyle.Render(fmt.Sprintf("%s (%s%%)", dollars(s.Savings), s.SavingsPercent.StringFixed(1))))

	sb.WriteString("\nBy tier:\n")
	for _, tier := range tr.Tiers {
		b, ok := s.ByTier[tier]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %-8s %4d req  %s\n", tier, b.Requests, dollars(b.Cost))
	}

	sb.WriteString("\nBy provider:\n")
	providers := make([]string, 0, len(s.ByProvider))
	for p := range s.ByProvider {
		providers = append(providers, string(p))
	}
	sort.Strings(providers)
	for _, p := range providers {
		b := s.ByProvider[tr.Provider(p)]
		fmt.Fprintf(&sb, "  %-10s %4d req  %s\n", p, b.Requests, dollars(b.Cost))
	}

	return boxStyle.Render(strings.TrimRight(sb.String(), "\n"))
}

// renderComparison formats per-tier costs for one call shape.
func renderComparison(p tr.Provider, in, out int64, costs map[tr.Tier]decimal.Decimal) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIER", "COST")
	for _, tier := range tr.Tiers {
		c, ok := costs[tier]
		if !ok {
			continue
		}
		t.Row(tier.String(), dollars(c))
	}
	header := fmt.Sprintf("%s: %d input + %d output tokens\n", p, in, out)
	return header + t.Render()
}
