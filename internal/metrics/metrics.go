// Package metrics exposes process-local prometheus collectors for the
// signaling core. Aggregates here cover this process only; other
// coordinating processes export their own.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveclass_sessions_live",
		Help: "Sessions with at least one live connection in this process.",
	})

	LiveParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveclass_participants_live",
		Help: "Live participant connections in this process.",
	})

	RelayForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveclass_relay_forwarded_total",
		Help: "Handshake payloads forwarded to their target.",
	}, []string{"kind"})

	RelayUnreachable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liveclass_relay_unreachable_total",
		Help: "Relay attempts whose target had no live connection.",
	})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liveclass_broadcast_dropped_total",
		Help: "Broadcast frames dropped due to peer backpressure.",
	})

	StoreWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveclass_store_write_failures_total",
		Help: "Background store writes that failed after all retries.",
	}, []string{"op"})

	StoreWritesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liveclass_store_writes_dropped_total",
		Help: "Background store writes dropped because the queue was full.",
	})

	ReapedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liveclass_reaped_connections_total",
		Help: "Stale connections removed by the idle reaper.",
	})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler { return promhttp.Handler() }
