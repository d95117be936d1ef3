package stream

import (
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

// otherEventType labels event types the client does not know, so a server
// cannot grow the label set without bound.
const otherEventType = "other"

// Metrics exposes Prometheus collectors for stream client activity. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	events            *prometheus.CounterVec
	duplicates        prometheus.Counter
	reconnects        prometheus.Counter
	heartbeatTimeouts prometheus.Counter
	state             *prometheus.GaugeVec
}

var allStates = []ConnectionState{
	StateDisconnected,
	StateConnecting,
	StateConnected,
	StateReconnecting,
	StateFailed,
}

// MustNewMetrics registers the stream collectors with reg (the default
// registerer when nil). Collectors that are already registered are reused so
// several clients can share one registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditctl",
				Subsystem: "stream",
				Name:      "events_total",
				Help:      "Events dispatched to handlers, by event type.",
			},
			[]string{"type"},
		)),
		duplicates: mustRegister(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auditctl",
				Subsystem: "stream",
				Name:      "duplicate_events_total",
				Help:      "Replayed events dropped because their sequence was already processed.",
			},
		)),
		reconnects: mustRegister(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auditctl",
				Subsystem: "stream",
				Name:      "reconnects_total",
				Help:      "Reconnect attempts scheduled.",
			},
		)),
		heartbeatTimeouts: mustRegister(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auditctl",
				Subsystem: "stream",
				Name:      "heartbeat_timeouts_total",
				Help:      "Connections dropped because no traffic arrived within the heartbeat timeout.",
			},
		)),
		state: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "auditctl",
				Subsystem: "stream",
				Name:      "connection_state",
				Help:      "1 for the current connection state, 0 otherwise.",
			},
			[]string{"state"},
		)),
	}
	return m
}

func mustRegister[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeEvent(t protocol.EventType) {
	if m == nil {
		return
	}
	label := string(t)
	if !t.Known() {
		label = otherEventType
	}
	m.events.WithLabelValues(label).Inc()
}

func (m *Metrics) observeDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) observeReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) observeHeartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Inc()
}

func (m *Metrics) setState(s ConnectionState) {
	if m == nil {
		return
	}
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(string(st)).Set(v)
	}
}
