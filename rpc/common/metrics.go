package common

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"time"
)

// --------------------------------------------------------------------------
// Client Metrics (Prometheus text exposition via VictoriaMetrics/metrics)
// --------------------------------------------------------------------------

// ObserveRequest records one wire request to a shard
func ObserveRequest(cmd Cmd, shardId uint64, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`netbus_requests_total{cmd=%q,shard="%d"}`, cmd.String(), shardId)).Inc()
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`netbus_request_errors_total{cmd=%q,shard="%d"}`, cmd.String(), shardId)).Inc()
	}
	metrics.GetOrCreateHistogram(fmt.Sprintf(`netbus_request_duration_seconds{cmd=%q}`, cmd.String())).UpdateDuration(start)
}

// ObserveReconnect records a (re)connect of a connection to a shard
func ObserveReconnect(shardId uint64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`netbus_connects_total{shard="%d",result=%q}`, shardId, result)).Inc()
}

// ObserveEvent records an event received over a push connection
func ObserveEvent(cmd Cmd, shardId uint64) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`netbus_events_total{cmd=%q,shard="%d"}`, cmd.String(), shardId)).Inc()
}

// WriteMetrics writes all client metrics in Prometheus text format to w
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
