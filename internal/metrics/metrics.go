// Package metrics records pipeline run metrics in a Prometheus registry
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "procrisk"

// Recorder holds the run metrics. Each Recorder owns its registry so
// concurrent or repeated runs in one process never collide.
type Recorder struct {
	registry *prometheus.Registry

	recordsImported *prometheus.GaugeVec
	recordsCleaned  *prometheus.GaugeVec
	flaggedBidders  *prometheus.GaugeVec
	clustersFound   *prometheus.GaugeVec
	windowThreshold *prometheus.GaugeVec
	stepDuration    *prometheus.HistogramVec
	stepErrors      *prometheus.CounterVec
	lastSuccess     *prometheus.GaugeVec
}

// NewRecorder creates a recorder with a fresh registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		recordsImported: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_imported",
			Help:      "Raw tender rows imported in the last run.",
		}, []string{"country"}),
		recordsCleaned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_cleaned",
			Help:      "Tender records kept after cleaning in the last run.",
		}, []string{"country"}),
		flaggedBidders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flagged_bidders",
			Help:      "Bidders with a summary row per detector in the last run.",
		}, []string{"country", "detector"}),
		clustersFound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contract_split_clusters",
			Help:      "Contract splitting clusters found in the last run.",
		}, []string{"country"}),
		windowThreshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "short_bid_window_threshold_days",
			Help:      "Bidding window quantile used as the short window cutoff.",
		}, []string{"country"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"country", "step"}),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Pipeline steps that returned an error.",
		}, []string{"country", "step"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful run.",
		}, []string{"country"}),
	}

	r.registry.MustRegister(
		r.recordsImported,
		r.recordsCleaned,
		r.flaggedBidders,
		r.clustersFound,
		r.windowThreshold,
		r.stepDuration,
		r.stepErrors,
		r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) RecordsImported(country string, n int) {
	r.recordsImported.WithLabelValues(country).Set(float64(n))
}

func (r *Recorder) RecordsCleaned(country string, n int) {
	r.recordsCleaned.WithLabelValues(country).Set(float64(n))
}

func (r *Recorder) FlaggedBidders(country, detector string, n int) {
	r.flaggedBidders.WithLabelValues(country, detector).Set(float64(n))
}

func (r *Recorder) Clusters(country string, n int) {
	r.clustersFound.WithLabelValues(country).Set(float64(n))
}

func (r *Recorder) WindowThreshold(country string, days float64) {
	r.windowThreshold.WithLabelValues(country).Set(days)
}

// ObserveStep records a step duration and, when err is non-nil, an error
func (r *Recorder) ObserveStep(country, step string, d time.Duration, err error) {
	r.stepDuration.WithLabelValues(country, step).Observe(d.Seconds())
	if err != nil {
		r.stepErrors.WithLabelValues(country, step).Inc()
	}
}

func (r *Recorder) RunSucceeded(country string, at time.Time) {
	r.lastSuccess.WithLabelValues(country).Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
