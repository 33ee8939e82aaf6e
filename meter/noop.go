package meter

import "github.com/ineyio/tierrouter"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ tierrouter.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnClassify(tierrouter.ClassifyEvent) {}
func (m *NoopMeter) OnRoute(tierrouter.RouteEvent)       {}
func (m *NoopMeter) OnResult(tierrouter.ResultEvent)     {}
func (m *NoopMeter) OnProbe(tierrouter.ProbeEvent)       {}
func (m *NoopMeter) OnRecord(tierrouter.RecordEvent)     {}
