// Package metrics exposes prometheus instruments for the synchronizer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics counts synchronizer transitions. A nil *SyncMetrics is a valid
// no-op receiver so tests and embedders can opt out.
type SyncMetrics struct {
	messagesIngested    prometheus.Counter
	duplicatesDropped   prometheus.Counter
	inconsistentEvents  prometheus.Counter
	readReceiptsEmitted prometheus.Counter
	sends               prometheus.Counter
	sendFailures        prometheus.Counter
	conversations       prometheus.Gauge
}

// New builds the instrument set and registers it when reg is non-nil.
func New(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		messagesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_ingested_total",
			Help: "Messages applied to the conversation collection.",
		}),
		duplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_duplicate_messages_dropped_total",
			Help: "Replayed message identities ignored by the ingestion guard.",
		}),
		inconsistentEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_inconsistent_events_total",
			Help: "Inbound events that matched no conversation and were dropped.",
		}),
		readReceiptsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_read_receipts_emitted_total",
			Help: "Messages acknowledged outward as read.",
		}),
		sends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_sends_total",
			Help: "Local sends attempted.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_send_failures_total",
			Help: "Local sends that failed to persist.",
		}),
		conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_conversations",
			Help: "Conversations currently held in the collection.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.messagesIngested,
			m.duplicatesDropped,
			m.inconsistentEvents,
			m.readReceiptsEmitted,
			m.sends,
			m.sendFailures,
			m.conversations,
		)
	}
	return m
}

func (m *SyncMetrics) MessageIngested() {
	if m != nil {
		m.messagesIngested.Inc()
	}
}

func (m *SyncMetrics) DuplicateDropped() {
	if m != nil {
		m.duplicatesDropped.Inc()
	}
}

func (m *SyncMetrics) InconsistentEvent() {
	if m != nil {
		m.inconsistentEvents.Inc()
	}
}

func (m *SyncMetrics) ReadReceiptsEmitted(n int) {
	if m != nil && n > 0 {
		m.readReceiptsEmitted.Add(float64(n))
	}
}

func (m *SyncMetrics) SendAttempted() {
	if m != nil {
		m.sends.Inc()
	}
}

func (m *SyncMetrics) SendFailed() {
	if m != nil {
		m.sendFailures.Inc()
	}
}

func (m *SyncMetrics) SetConversations(n int) {
	if m != nil {
		m.conversations.Set(float64(n))
	}
}
