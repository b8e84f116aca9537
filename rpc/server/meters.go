package server

import (
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/rcrowley/go-metrics"
	"sort"
	"sync"
)

// meters counts gateway activity (open, close, message and every worker command)
// and reports it as the answer of CmdMetrics
type meters struct {
	registry metrics.Registry

	// max holds the highest rates reported so far per item
	mu  sync.Mutex
	max map[string]common.MetricsItem
}

func newMeters() *meters {
	return &meters{
		registry: metrics.NewRegistry(),
		max:      make(map[string]common.MetricsItem),
	}
}

func (m *meters) mark(item string, n int64) {
	metrics.GetOrRegisterMeter(item, m.registry).Mark(n)
}

// items returns the current rates of all items ordered by name
func (m *meters) items() []common.MetricsItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []common.MetricsItem{}
	m.registry.Each(func(name string, i interface{}) {
		meter, ok := i.(metrics.Meter)
		if !ok {
			return
		}

		prev := m.max[name]
		item := common.MetricsItem{
			Item:        name,
			Count:       meter.Count(),
			MeanRate:    meter.RateMean(),
			Rate1:       meter.Rate1(),
			Rate5:       meter.Rate5(),
			Rate15:      meter.Rate15(),
			MeanRateMax: prev.MeanRateMax,
			Rate1Max:    prev.Rate1Max,
			Rate5Max:    prev.Rate5Max,
			Rate15Max:   prev.Rate15Max,
		}
		item.MeanRateMax = max(item.MeanRateMax, item.MeanRate)
		item.Rate1Max = max(item.Rate1Max, item.Rate1)
		item.Rate5Max = max(item.Rate5Max, item.Rate5)
		item.Rate15Max = max(item.Rate15Max, item.Rate15)

		m.max[name] = item
		items = append(items, item)
	})

	sort.Slice(items, func(i, j int) bool { return items[i].Item < items[j].Item })
	return items
}

func (m *meters) stop() {
	m.registry.Each(func(_ string, i interface{}) {
		if meter, ok := i.(metrics.Meter); ok {
			meter.Stop()
		}
	})
	m.registry.UnregisterAll()
}
