package meter

import (
	"github.com/rs/zerolog"

	"github.com/ineyio/tierrouter"
)

// ZerologMeter logs routing events to a zerolog.Logger. Used by the CLI.
type ZerologMeter struct {
	logger zerolog.Logger
}

var _ tierrouter.Meter = (*ZerologMeter)(nil)

// NewZerologMeter creates a ZerologMeter.
func NewZerologMeter(logger zerolog.Logger) *ZerologMeter {
	return &ZerologMeter{logger: logger.With().Str("component", "tierrouter").Logger()}
}

func (m *ZerologMeter) OnClassify(e tierrouter.ClassifyEvent) {
	ev := m.logger.Debug()
	if e.Fallback {
		ev = m.logger.Info()
	}
	ev.Str("task_type", e.TaskType).
		Str("keyword", e.Keyword).
		Stringer("tier", e.Tier).
		Bool("fallback", e.Fallback).
		Msg("classify")
}

func (m *ZerologMeter) OnRoute(e tierrouter.RouteEvent) {
	m.logger.Info().
		Str("user", e.UserID).
		Stringer("provider", e.Provider).
		Str("model", e.Model).
		Stringer("tier", e.Tier).
		Stringer("requested_tier", e.RequestedTier).
		Str("reason", string(e.Reason)).
		Int("attempt", e.AttemptNum).
		Int64("estimated_tokens", e.EstimatedIn).
		Msg("route")
}

func (m *ZerologMeter) OnResult(e tierrouter.ResultEvent) {
	if !e.Success {
		m.logger.Warn().
			Err(e.Error).
			Str("user", e.UserID).
			Stringer("provider", e.Provider).
			Str("model", e.Model).
			Dur("duration", e.Duration).
			Msg("result_error")
		return
	}
	m.logger.Info().
		Str("user", e.UserID).
		Stringer("provider", e.Provider).
		Str("model", e.Model).
		Stringer("tier", e.Tier).
		Dur("duration", e.Duration).
		Int64("input_tokens", e.Usage.InputTokens).
		Int64("output_tokens", e.Usage.OutputTokens).
		Str("cost", e.Cost.String()).
		Msg("result")
}

func (m *ZerologMeter) OnProbe(e tierrouter.ProbeEvent) {
	ev := m.logger.Debug()
	if e.Error != nil {
		ev = m.logger.Warn().Err(e.Error)
	}
	ev.Stringer("provider", e.Provider).
		Stringer("status", e.Status).
		Dur("duration", e.Duration).
		Msg("probe")
}

func (m *ZerologMeter) OnRecord(e tierrouter.RecordEvent) {
	if e.Error == nil {
		return
	}
	m.logger.Error().
		Err(e.Error).
		Str("record", e.Record.ID).
		Str("user", e.Record.UserID).
		Msg("ledger append failed")
}
