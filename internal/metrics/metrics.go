// Package metrics defines the Prometheus collectors for discovery, the
// plugin lifecycle and the message bus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plugkit"

// Metrics holds every collector. The zero value is not usable; use New or
// NewNop.
type Metrics struct {
	ContainersDiscovered prometheus.Counter
	ContainersSuperseded prometheus.Counter
	ContainersEnabled    prometheus.Gauge
	ContainersDisabled   *prometheus.CounterVec
	PluginTypes          prometheus.Counter

	PluginsActive  prometheus.Gauge
	PluginFailures *prometheus.CounterVec

	BusMessages    *prometheus.CounterVec
	ListenerFaults *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ContainersDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "containers_total",
			Help:      "Containers offered by locator modules.",
		}),
		ContainersSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "containers_superseded_total",
			Help:      "Containers that lost version selection.",
		}),
		ContainersEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "containers_enabled",
			Help:      "Containers accepted after resolution and scanning.",
		}),
		ContainersDisabled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "containers_disabled_total",
				Help:      "Containers disabled, by reason.",
			},
			[]string{"reason"},
		),
		PluginTypes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "plugin_types_total",
			Help:      "Plugin types found by the scanner.",
		}),
		PluginsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "plugins_active",
			Help:      "Plugins that completed init.",
		}),
		PluginFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "plugin_failures_total",
				Help:      "Plugins dropped, by lifecycle phase.",
			},
			[]string{"phase"},
		),
		BusMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "messages_total",
				Help:      "Bus messages, by channel and direction.",
			},
			[]string{"channel", "direction"},
		),
		ListenerFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "listener_faults_total",
				Help:      "Listener failures during dispatch, by channel.",
			},
			[]string{"channel"},
		),
	}

	reg.MustRegister(
		m.ContainersDiscovered,
		m.ContainersSuperseded,
		m.ContainersEnabled,
		m.ContainersDisabled,
		m.PluginTypes,
		m.PluginsActive,
		m.PluginFailures,
		m.BusMessages,
		m.ListenerFaults,
	)
	return m
}

// NewNop creates collectors registered with a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
