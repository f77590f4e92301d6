package docsgate

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the site counters on an isolated registry so every App,
// and every test, gets its own set.
type Metrics struct {
	Registry *prometheus.Registry

	LoginOutcomes  *prometheus.CounterVec
	SponsorChecks  *prometheus.CounterVec
	ExportEntries  *prometheus.CounterVec
	OGImages       *prometheus.CounterVec
	ExportDuration prometheus.Histogram
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		LoginOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsgate_login_outcomes_total",
				Help: "OAuth callbacks by outcome.",
			},
			[]string{"outcome"},
		),
		SponsorChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsgate_sponsor_checks_total",
				Help: "Sponsorship decisions by reason.",
			},
			[]string{"reason", "allowed"},
		),
		ExportEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsgate_export_entries_total",
				Help: "Exported pages by status.",
			},
			[]string{"status"},
		),
		OGImages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsgate_og_images_total",
				Help: "Open Graph images by result.",
			},
			[]string{"result"},
		),
		ExportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docsgate_export_duration_seconds",
				Help:    "Wall time of static exports.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
	}
	reg.MustRegister(m.LoginOutcomes, m.SponsorChecks, m.ExportEntries, m.OGImages, m.ExportDuration)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
