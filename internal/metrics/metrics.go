package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the streaming client's instruments. A nil *Metrics is
// valid and turns every recording method into a no-op, so tests and
// lightweight callers can skip instrumentation.
type Metrics struct {
	framesReceived  *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	heartbeats      *prometheus.CounterVec
	sessionsReady   *prometheus.GaugeVec
}

// New registers the client's metrics with reg and returns them. Each
// client instance should get its own registry; nothing here is global.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketstream_frames_received_total",
			Help: "Wire frames received, per channel.",
		}, []string{"channel"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketstream_decode_errors_total",
			Help: "Malformed wire messages skipped, per channel.",
		}, []string{"channel"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketstream_events_published_total",
			Help: "Domain events delivered to the bus, per event name.",
		}, []string{"event"}),
		reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketstream_reconnect_attempts_total",
			Help: "Reconnect attempts scheduled, per channel.",
		}, []string{"channel"}),
		heartbeats: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketstream_heartbeats_sent_total",
			Help: "Keep-alive probes sent, per channel.",
		}, []string{"channel"}),
		sessionsReady: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketstream_session_ready",
			Help: "Whether the channel session is in the ready state.",
		}, []string{"channel"}),
	}
}

// FrameReceived records one inbound frame on the channel.
func (m *Metrics) FrameReceived(channel string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(channel).Inc()
}

// DecodeError records one skipped malformed message on the channel.
func (m *Metrics) DecodeError(channel string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(channel).Inc()
}

// EventPublished records one event delivered to the bus.
func (m *Metrics) EventPublished(event string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(event).Inc()
}

// ReconnectScheduled records one reconnect attempt for the channel.
func (m *Metrics) ReconnectScheduled(channel string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(channel).Inc()
}

// HeartbeatSent records one keep-alive probe on the channel.
func (m *Metrics) HeartbeatSent(channel string) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(channel).Inc()
}

// SessionReady flips the channel's ready gauge.
func (m *Metrics) SessionReady(channel string, ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1.0
	}
	m.sessionsReady.WithLabelValues(channel).Set(v)
}
