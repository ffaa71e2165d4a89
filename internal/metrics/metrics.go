// Package metrics exposes Prometheus collectors for presence, friend request
// transitions and live notifications.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lingopals"

// Notification results.
const (
	Delivered = "delivered"
	Offline   = "offline"
	Failed    = "failed"
)

// Metrics owns its own registry so that independent instances can coexist
// in tests. All methods are safe on a nil receiver.
type Metrics struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	connections   *prometheus.CounterVec
}

// New builds the collectors. online reports the current number of
// connected users and is sampled at scrape time.
func New(online func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "friend_request_transitions_total",
			Help:      "Friend request transitions by kind and outcome.",
		}, []string{"transition", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Live notifications by event type and result.",
		}, []string{"event", "result"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_connection_events_total",
			Help:      "Realtime connection lifecycle events.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.transitions,
		m.notifications,
		m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if online != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with a live connection.",
		}, func() float64 { return float64(online()) }))
	}
	return m
}

func (m *Metrics) Transition(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transitions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Notification(event, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, result).Inc()
}

func (m *Metrics) Connection(event string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(event).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
