package meter

import "github.com/ineyio/tierrouter"

// Multi fans every event out to each meter in order.
type Multi []tierrouter.Meter

var _ tierrouter.Meter = Multi(nil)

func (m Multi) OnClassify(e tierrouter.ClassifyEvent) {
	for _, mm := range m {
		mm.OnClassify(e)
	}
}

func (m Multi) OnRoute(e tierrouter.RouteEvent) {
	for _, mm := range m {
		mm.OnRoute(e)
	}
}

func (m Multi) OnResult(e tierrouter.ResultEvent) {
	for _, mm := range m {
		mm.OnResult(e)
	}
}

func (m Multi) OnProbe(e tierrouter.ProbeEvent) {
	for _, mm := range m {
		mm.OnProbe(e)
	}
}

func (m Multi) OnRecord(e tierrouter.RecordEvent) {
	for _, mm := range m {
		mm.OnRecord(e)
	}
}
