package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kbi"

// RunMetrics holds the metrics of one run. Each RunMetrics owns its
// registry so runs and tests never collide on the default registerer.
type RunMetrics struct {
	registry *prometheus.Registry

	Files          prometheus.Gauge
	Nodes          prometheus.Gauge
	Keywords       prometheus.Gauge
	KeywordMatches prometheus.Gauge
	Tags           prometheus.Gauge
	Diagnostics    *prometheus.CounterVec
	StageDuration  *prometheus.GaugeVec
	RunDuration    prometheus.Gauge
	LastRun        prometheus.Gauge
	Success        prometheus.Gauge
	OutputBytes    prometheus.Gauge
}

// NewRunMetrics creates and registers the run metrics.
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &RunMetrics{
		registry:       reg,
		Files:          gauge("documents", "Documents parsed in the last run."),
		Nodes:          gauge("nodes", "Document nodes in the forest of the last run."),
		Keywords:       gauge("keywords", "Keyword nodes searched in the last run."),
		KeywordMatches: gauge("keyword_matches", "Document nodes matched by keywords in the last run."),
		Tags:           gauge("tags", "Distinct tags found in the last run."),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Warnings and errors reported by the last run, by code.",
		}, []string{"code", "severity"}),
		StageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		RunDuration: gauge("run_duration_seconds", "Wall time of the last run."),
		LastRun:     gauge("last_run_timestamp_seconds", "Unix time the last run finished."),
		Success:     gauge("last_run_success", "1 if the last run wrote its output with all branches."),
		OutputBytes: gauge("output_bytes", "Size of the written index file."),
	}
}

// ObserveStage records the duration of one stage.
func (m *RunMetrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// ObserveDiagnostic counts one warning or error.
func (m *RunMetrics) ObserveDiagnostic(code, severity string) {
	m.Diagnostics.WithLabelValues(code, severity).Inc()
}

// Finish stamps the run end.
func (m *RunMetrics) Finish(duration time.Duration, success bool, end time.Time) {
	m.RunDuration.Set(duration.Seconds())
	m.LastRun.Set(float64(end.Unix()))
	if success {
		m.Success.Set(1)
	} else {
		m.Success.Set(0)
	}
}

// Gatherer exposes the registry.
func (m *RunMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics atomically in text exposition format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
