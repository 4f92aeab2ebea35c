package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics records gauges and counters for the live arena surface.
type RealtimeMetrics struct {
	connections        prometheus.Gauge
	liveArenas         prometheus.Gauge
	messagesIn         *prometheus.CounterVec
	broadcastsOut      prometheus.Counter
	broadcastFailures  prometheus.Counter
	settlements        prometheus.Counter
	settlementReplays  prometheus.Counter
	settlementFailures prometheus.Counter
}

// NewRealtimeMetrics registers the realtime metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Currently registered websocket connections.",
	})
	liveArenas := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arenas_live",
		Help: "Arenas currently in the live state.",
	})
	messagesIn := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_messages_in",
		Help: "Inbound realtime messages by type.",
	}, []string{"type"})
	broadcastsOut := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_broadcasts_out",
		Help: "Outbound envelopes written to connections.",
	})
	broadcastFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_broadcast_failures",
		Help: "Per-recipient delivery failures swallowed during fan-out.",
	})
	settlements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Arenas settled with a prize distribution.",
	})
	settlementReplays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_replays_total",
		Help: "Settlement calls short-circuited by the finished guard.",
	})
	settlementFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_failures_total",
		Help: "Settlement attempts that failed and were re-raised.",
	})
	reg.MustRegister(
		connections, liveArenas, messagesIn,
		broadcastsOut, broadcastFailures,
		settlements, settlementReplays, settlementFailures,
	)
	return &RealtimeMetrics{
		connections:        connections,
		liveArenas:         liveArenas,
		messagesIn:         messagesIn,
		broadcastsOut:      broadcastsOut,
		broadcastFailures:  broadcastFailures,
		settlements:        settlements,
		settlementReplays:  settlementReplays,
		settlementFailures: settlementFailures,
	}
}

// ConnOpened increments the connection gauge.
func (m *RealtimeMetrics) ConnOpened() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Inc()
}

// ConnClosed decrements the connection gauge.
func (m *RealtimeMetrics) ConnClosed() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Dec()
}

// ArenaOpened increments the live arena gauge.
func (m *RealtimeMetrics) ArenaOpened() {
	if m == nil || m.liveArenas == nil {
		return
	}
	m.liveArenas.Inc()
}

// ArenaClosed decrements the live arena gauge.
func (m *RealtimeMetrics) ArenaClosed() {
	if m == nil || m.liveArenas == nil {
		return
	}
	m.liveArenas.Dec()
}

// MessageIn counts an inbound realtime message of the given type.
func (m *RealtimeMetrics) MessageIn(msgType string) {
	if m == nil || m.messagesIn == nil {
		return
	}
	if msgType == "" {
		msgType = "unknown"
	}
	m.messagesIn.WithLabelValues(msgType).Inc()
}

// BroadcastOut counts envelopes written during fan-out.
func (m *RealtimeMetrics) BroadcastOut(n int) {
	if m == nil || m.broadcastsOut == nil || n <= 0 {
		return
	}
	m.broadcastsOut.Add(float64(n))
}

// BroadcastFailure counts a swallowed per-recipient delivery failure.
func (m *RealtimeMetrics) BroadcastFailure() {
	if m == nil || m.broadcastFailures == nil {
		return
	}
	m.broadcastFailures.Inc()
}

// SettlementCompleted counts a prize distribution.
func (m *RealtimeMetrics) SettlementCompleted() {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.Inc()
}

// SettlementReplayed counts a settlement call stopped by the finished guard.
func (m *RealtimeMetrics) SettlementReplayed() {
	if m == nil || m.settlementReplays == nil {
		return
	}
	m.settlementReplays.Inc()
}

// SettlementFailed counts a settlement attempt that errored.
func (m *RealtimeMetrics) SettlementFailed() {
	if m == nil || m.settlementFailures == nil {
		return
	}
	m.settlementFailures.Inc()
}
