// Package metrics exposes run, enrichment, download and HTTP counters in the
// Prometheus text format. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transferoracle"

// Recorder owns a private registry so tests and multiple instances never
// collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	suggestions    prometheus.Gauge
	bestValueRatio prometheus.Gauge
	warnings       prometheus.Gauge
	enriched       prometheus.Gauge
	lookups        *prometheus.CounterVec
	downloads      *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewRecorder creates a recorder with every collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total", Help: "Analysis runs by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds", Help: "Analysis run duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		suggestions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "suggestions", Help: "Transfer suggestions in the latest report.",
		}),
		bestValueRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_value_ratio", Help: "Value ratio of the top suggestion.",
		}),
		warnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "warnings", Help: "Warnings raised by the latest run.",
		}),
		enriched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "enriched_players", Help: "Players carrying a scraped signal in the latest run.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_lookups_total", Help: "Signal lookups by outcome.",
		}, []string{"outcome"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "downloads_total", Help: "Snapshot downloads by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		r.runs, r.runDuration, r.suggestions, r.bestValueRatio, r.warnings, r.enriched,
		r.lookups, r.downloads, r.requests, r.requestLatency,
	)
	return r
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RunResult summarizes one analysis run.
type RunResult struct {
	Duration       time.Duration
	Suggestions    int
	BestValueRatio float64
	Warnings       int
	Enriched       int
}

// RecordRun records a finished run. Gauges only move on success.
func (r *Recorder) RecordRun(res RunResult, err error) {
	if r == nil {
		return
	}
	r.runDuration.Observe(res.Duration.Seconds())
	if err != nil {
		r.runs.WithLabelValues("error").Inc()
		return
	}
	r.runs.WithLabelValues("ok").Inc()
	r.suggestions.Set(float64(res.Suggestions))
	r.bestValueRatio.Set(res.BestValueRatio)
	r.warnings.Set(float64(res.Warnings))
	r.enriched.Set(float64(res.Enriched))
}

// RecordLookups adds n lookups with the given outcome, e.g. "fetched".
func (r *Recorder) RecordLookups(outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.lookups.WithLabelValues(outcome).Add(float64(n))
}

// RecordDownload records a snapshot download.
func (r *Recorder) RecordDownload(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.downloads.WithLabelValues(result).Inc()
}

// RecordRequest records one served HTTP request.
func (r *Recorder) RecordRequest(route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}
