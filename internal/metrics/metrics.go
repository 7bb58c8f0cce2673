// Package metrics exposes analysis and hook outcomes in the Prometheus
// text format. relkit is a short-lived CLI, so metrics are written to a
// node_exporter textfile rather than served.
package metrics

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"relkit/internal/errors"
)

const namespace = "relkit"

// Recorder holds one process's metrics in a private registry.
type Recorder struct {
	reg      *prometheus.Registry
	observed atomic.Bool

	analysisDuration prometheus.Histogram
	analysisResults  *prometheus.CounterVec
	analysisLastOK   prometheus.Gauge
	analysisLastRun  prometheus.Gauge
	hookRuns         *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
}

// New creates a Recorder with every collector registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Wall time of release analyses, retries included",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		analysisResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "results_total",
			Help:      "Release analyses by outcome category",
		}, []string{"category"}),
		analysisLastOK: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "last_success",
			Help:      "1 if the most recent analysis succeeded, 0 otherwise",
		}),
		analysisLastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the most recent analysis",
		}),
		hookRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "runs_total",
			Help:      "Hook executions by hook and outcome",
		}, []string{"hook", "outcome"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "fallbacks_total",
			Help:      "Compensating fallbacks run by the workflow guard",
		}, []string{"hook"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveAnalysis records one analysis. Successes are counted under the
// "success" category; failures under their error category.
func (r *Recorder) ObserveAnalysis(d time.Duration, err error) {
	r.observed.Store(true)
	r.analysisDuration.Observe(d.Seconds())
	r.analysisLastRun.SetToCurrentTime()
	if err == nil {
		r.analysisResults.WithLabelValues("success").Inc()
		r.analysisLastOK.Set(1)
		return
	}
	r.analysisResults.WithLabelValues(string(errors.CategoryOf(err))).Inc()
	r.analysisLastOK.Set(0)
}

// ObserveHook records one hook execution.
func (r *Recorder) ObserveHook(hook string, success, fallbackUsed bool) {
	r.observed.Store(true)
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.hookRuns.WithLabelValues(hook, outcome).Inc()
	if fallbackUsed {
		r.fallbacks.WithLabelValues(hook).Inc()
	}
}

// WriteTextfile writes the registry to path atomically, creating parent
// directories.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.reg)
}

// Observed reports whether anything was recorded. Writing an unobserved
// registry would only erase the previous run's values.
func (r *Recorder) Observed() bool { return r.observed.Load() }
