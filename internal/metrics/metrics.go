// Package metrics exposes Prometheus counters for capture import and
// interval matching.
//
// A Recorder is bound to a caller supplied registry so tests and repeated
// CLI invocations never collide on the default registry. All methods are
// safe on a nil *Recorder, which records nothing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the counters of one run.
type Recorder struct {
	registry *prometheus.Registry

	recordsImported *prometheus.CounterVec
	recordsFailed   *prometheus.CounterVec
	noiseLines      *prometheus.CounterVec
	counterWraps    *prometheus.CounterVec

	intervalsMatched prometheus.Counter
	stopsUnmatched   prometheus.Counter
	startsOpen       prometheus.Counter
}

// New creates a recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		recordsImported: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "microman_records_imported_total",
			Help: "Records decoded from capture files, by format",
		}, []string{"format"}),
		recordsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "microman_records_failed_total",
			Help: "Record lines that failed to decode, by format",
		}, []string{"format"}),
		noiseLines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "microman_noise_lines_total",
			Help: "Comment, empty and wrong-length lines skipped, by format",
		}, []string{"format"}),
		counterWraps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "microman_counter_wraps_total",
			Help: "Counter overflows detected while unwrapping, by format",
		}, []string{"format"}),
		intervalsMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "microman_intervals_matched_total",
			Help: "Start/stop pairs matched into intervals",
		}),
		stopsUnmatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "microman_stops_unmatched_total",
			Help: "Stop entries without an open start",
		}),
		startsOpen: factory.NewCounter(prometheus.CounterOpts{
			Name: "microman_starts_open_total",
			Help: "Start entries never closed by a stop",
		}),
	}
}

// Registry returns the registry the counters live in.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveImport records the outcome of importing one capture.
func (r *Recorder) ObserveImport(format string, imported, failed, noise, wraps int) {
	if r == nil {
		return
	}
	r.recordsImported.WithLabelValues(format).Add(float64(imported))
	r.recordsFailed.WithLabelValues(format).Add(float64(failed))
	r.noiseLines.WithLabelValues(format).Add(float64(noise))
	r.counterWraps.WithLabelValues(format).Add(float64(wraps))
}

// ObserveMatch records the outcome of matching one capture.
func (r *Recorder) ObserveMatch(matched, unmatched, open int) {
	if r == nil {
		return
	}
	r.intervalsMatched.Add(float64(matched))
	r.stopsUnmatched.Add(float64(unmatched))
	r.startsOpen.Add(float64(open))
}

// WriteFile writes all counters in the Prometheus text format, suitable for
// the node exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
