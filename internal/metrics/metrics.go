// Package metrics exposes engine activity as Prometheus collectors. A CLI
// process has no scrape endpoint, so the registry is written to a file for
// the node_exporter textfile collector instead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sniffers"

// Metrics owns a private registry and its collectors.
type Metrics struct {
	reg *prometheus.Registry

	Passes       *prometheus.CounterVec
	FilesScanned *prometheus.CounterVec
	FilesChanged *prometheus.CounterVec
	LastDuration *prometheus.GaugeVec
	LastRun      *prometheus.GaugeVec
}

// Pass summarizes one index or sniff call.
type Pass struct {
	Op       string // "index" or "sniff"
	Scanned  int
	Added    int
	Modified int
	Removed  int
	Duration time.Duration
	Err      error
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Index and sniff passes by outcome.",
			},
			[]string{"op", "result"},
		),
		FilesScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_scanned_total",
				Help:      "Regular files fingerprinted.",
			},
			[]string{"op"},
		),
		FilesChanged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_changed_total",
				Help:      "Files reported as changed relative to the store.",
			},
			[]string{"kind"},
		),
		LastDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_duration_seconds",
				Help:      "Wall time of the most recent pass.",
			},
			[]string{"op"},
		),
		LastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the most recent pass finished.",
			},
			[]string{"op"},
		),
	}
	m.reg.MustRegister(m.Passes, m.FilesScanned, m.FilesChanged, m.LastDuration, m.LastRun)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Observe records a finished pass.
func (m *Metrics) Observe(p Pass) {
	if p.Err != nil {
		m.Passes.WithLabelValues(p.Op, "error").Inc()
		return
	}
	m.Passes.WithLabelValues(p.Op, "ok").Inc()
	m.FilesScanned.WithLabelValues(p.Op).Add(float64(p.Scanned))
	if p.Added > 0 {
		m.FilesChanged.WithLabelValues("added").Add(float64(p.Added))
	}
	if p.Modified > 0 {
		m.FilesChanged.WithLabelValues("modified").Add(float64(p.Modified))
	}
	if p.Removed > 0 {
		m.FilesChanged.WithLabelValues("removed").Add(float64(p.Removed))
	}
	m.LastDuration.WithLabelValues(p.Op).Set(p.Duration.Seconds())
	m.LastRun.WithLabelValues(p.Op).SetToCurrentTime()
}

// WriteTextfile atomically writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
