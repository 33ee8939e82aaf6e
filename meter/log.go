package meter

import (
	"log/slog"

	"github.com/ineyio/tierrouter"
)

// LogMeter logs routing events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ tierrouter.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnClassify(e tierrouter.ClassifyEvent) {
	if e.Fallback {
		m.Logger.Info("classify_fallback",
			"task_type", e.TaskType,
			"tier", e.Tier.String(),
		)
		return
	}
	m.Logger.Debug("classify",
		"task_type", e.TaskType,
		"keyword", e.Keyword,
		"tier", e.Tier.String(),
	)
}

func (m *LogMeter) OnRoute(e tierrouter.RouteEvent) {
	m.Logger.Info("route",
		"user", e.UserID,
		"provider", e.Provider,
		"model", e.Model,
		"tier", e.Tier.String(),
		"requested_tier", e.RequestedTier.String(),
		"reason", e.Reason,
		"attempt", e.AttemptNum,
		"estimated_tokens", e.EstimatedIn,
	)
}

func (m *LogMeter) OnResult(e tierrouter.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			"user", e.UserID,
			"provider", e.Provider,
			"model", e.Model,
			"tier", e.Tier.String(),
			"duration_ms", e.Duration.Milliseconds(),
			"input_tokens", e.Usage.InputTokens,
			"output_tokens", e.Usage.OutputTokens,
			"cost", e.Cost.String(),
		)
	} else {
		m.Logger.Warn("result_error",
			"user", e.UserID,
			"provider", e.Provider,
			"model", e.Model,
			"tier", e.Tier.String(),
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Error,
		)
	}
}

func (m *LogMeter) OnProbe(e tierrouter.ProbeEvent) {
	if e.Error != nil {
		m.Logger.Warn("probe",
			"provider", e.Provider,
			"status", e.Status.String(),
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Error,
		)
		return
	}
	m.Logger.Debug("probe",
		"provider", e.Provider,
		"status", e.Status.String(),
		"duration_ms", e.Duration.Milliseconds(),
	)
}

func (m *LogMeter) OnRecord(e tierrouter.RecordEvent) {
	if e.Error != nil {
		m.Logger.Error("ledger_append",
			"record", e.Record.ID,
			"user", e.Record.UserID,
			"error", e.Error,
		)
	}
}
