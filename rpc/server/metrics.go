package server

import (
	"bufio"
	"bytes"
	"time"

	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/rcrowley/go-metrics"
)

// serverMetrics collects the request timings of a server in its own registry
type serverMetrics struct {
	registry metrics.Registry
	timers   map[common.MessageKind]metrics.Timer
	errors   metrics.Meter
	purged   metrics.Counter
}

func newServerMetrics() *serverMetrics {
	r := metrics.NewRegistry()
	m := &serverMetrics{
		registry: r,
		timers:   make(map[common.MessageKind]metrics.Timer),
		errors:   metrics.GetOrRegisterMeter("server.errors", r),
		purged:   metrics.GetOrRegisterCounter("server.purged", r),
	}
	for _, kind := range []common.MessageKind{
		common.MsgKGet, common.MsgKPut, common.MsgKPutAll, common.MsgKGetAll, common.MsgKRemove,
		common.MsgKContainsKey, common.MsgKSize, common.MsgKClear, common.MsgKKeys,
	} {
		m.timers[kind] = metrics.GetOrRegisterTimer("server.requests."+kind.String(), r)
	}
	return m
}

// observe records one handled request. Unknown kinds only count as errors.
func (m *serverMetrics) observe(kind common.MessageKind, start time.Time, failed bool) {
	if t, ok := m.timers[kind]; ok {
		t.UpdateSince(start)
	}
	if failed {
		m.errors.Mark(1)
	}
}

// log writes a snapshot of all metrics to the server logger
func (m *serverMetrics) log() {
	var buf bytes.Buffer
	metrics.WriteOnce(m.registry, &buf)
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			Logger.Infof("%s", line)
		}
	}
}
