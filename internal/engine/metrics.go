// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kegbrew/kegbrew/pkg/formula"
)

// Metrics are the engine's Prometheus collectors. Each engine owns its own
// registry so that tests and embedders never share state.
type Metrics struct {
	Registry *prometheus.Registry

	installsTotal   *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	installsRunning prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		installsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kegbrew_installs_total",
				Help: "Number of formula installs by outcome and install path.",
			},
			[]string{"outcome", "path"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kegbrew_step_duration_seconds",
				Help:    "Time taken by install steps.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		installsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kegbrew_installs_in_flight",
				Help: "Number of formula installs currently running.",
			},
		),
	}
	m.Registry.MustRegister(m.installsTotal, m.stepDuration, m.installsRunning)
	return m
}

func (m *Metrics) observeStep(action formula.Action, d time.Duration) {
	m.stepDuration.WithLabelValues(string(action)).Observe(d.Seconds())
}

func (m *Metrics) countInstall(outcome Status, path string) {
	if path == "" {
		path = "none"
	}
	m.installsTotal.WithLabelValues(string(outcome), path).Inc()
}

// WriteTextfile writes the current values in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
