// Package metrics exports run statistics in the Prometheus textfile format so
// node_exporter's textfile collector can pick them up after each run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lilnasy/astro-optimize-pictures/internal/failures"
	"github.com/lilnasy/astro-optimize-pictures/internal/pipeline"
)

// Run holds the metrics of one optimization run in its own registry.
type Run struct {
	registry *prometheus.Registry

	images        *prometheus.GaugeVec
	outputs       *prometheus.GaugeVec
	failures      *prometheus.GaugeVec
	imageDuration prometheus.Histogram
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
	workers       prometheus.Gauge
}

// NewRun creates an empty metric set.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Run{
		registry: reg,
		images: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "astro_optimize_images",
				Help: "Images processed in the last run by outcome",
			},
			[]string{"outcome"}, // "optimized", "failed"
		),
		outputs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "astro_optimize_outputs",
				Help: "Variant files in the last run by status",
			},
			[]string{"status"}, // "cached", "transcoded", "failed"
		),
		failures: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "astro_optimize_failures",
				Help: "Failed images in the last run by failure kind",
			},
			[]string{"kind"},
		),
		imageDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "astro_optimize_image_duration_seconds",
				Help:    "Time spent on each image in the last run",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		runDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "astro_optimize_run_duration_seconds",
				Help: "Wall time of the last run",
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "astro_optimize_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
		workers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "astro_optimize_workers",
				Help: "Worker pool size of the last run",
			},
		),
	}
}

// Observe records a finished run.
func (r *Run) Observe(report *pipeline.Report) {
	if report == nil {
		return
	}
	cached, transcoded, failed := report.Totals()
	r.outputs.WithLabelValues("cached").Set(float64(cached))
	r.outputs.WithLabelValues("transcoded").Set(float64(transcoded))
	r.outputs.WithLabelValues("failed").Set(float64(failed))

	failedImages := report.Failed()
	r.images.WithLabelValues("optimized").Set(float64(len(report.Results) - failedImages))
	r.images.WithLabelValues("failed").Set(float64(failedImages))

	for _, res := range report.Results {
		r.imageDuration.Observe(res.Duration.Seconds())
		if res.Err == nil {
			continue
		}
		kind := string(failures.KindOf(res.Err))
		if kind == "" {
			kind = "other"
		}
		r.failures.WithLabelValues(kind).Inc()
	}

	r.runDuration.Set(report.Finished.Sub(report.Started).Seconds())
	r.lastRun.Set(float64(report.Finished.Unix()))
	r.workers.Set(float64(report.Workers))
}

// Gatherer exposes the registry.
func (r *Run) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics to path atomically.
func (r *Run) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
