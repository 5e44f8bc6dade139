package contestd

import (
	"stakecurate/core/events"
	"stakecurate/native/contest"
	"stakecurate/observability"
)

// metricsEmitter counts ledger events and failed transfers.
type metricsEmitter struct {
	contestd *observability.ContestdMetrics
}

func newMetricsEmitter() metricsEmitter {
	return metricsEmitter{contestd: observability.Contestd()}
}

// Emit implements events.Emitter.
func (m metricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	observability.Events().RecordEvent(evt.EventType())
	if evt.EventType() != contest.EventTypeTransferFailed {
		return
	}
	reason := ""
	if rec, ok := evt.(events.Record); ok {
		reason = rec.Attributes["reason"]
	}
	m.contestd.RecordTransferFailure(reason)
}
