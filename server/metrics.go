package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the HTTP surface.
type Metrics struct {
	Reports        *prometheus.CounterVec
	ReportDuration prometheus.Histogram
	Defaults       *prometheus.CounterVec
	RowsIngested   prometheus.Counter
	Sessions       prometheus.Gauge
	Requests       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datadash_reports_total",
				Help: "Report computations by outcome",
			},
			[]string{"outcome"},
		),
		ReportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "datadash_report_duration_seconds",
				Help:    "Time to compute one report in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
		),
		Defaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datadash_coercion_defaults_total",
				Help: "Cells that fell back to their role default during normalization",
			},
			[]string{"role"},
		),
		RowsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "datadash_rows_ingested_total",
				Help: "Rows loaded from uploaded datasets",
			},
		),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "datadash_sessions",
				Help: "Live sessions",
			},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datadash_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
	reg.MustRegister(m.Reports, m.ReportDuration, m.Defaults, m.RowsIngested, m.Sessions, m.Requests)
	return m
}
