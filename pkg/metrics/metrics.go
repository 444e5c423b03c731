// Package metrics collects Prometheus metrics for nvconf runs. nvconf is a
// short-lived process, so metrics are written to a node_exporter textfile
// rather than served. Counters are carried over from the previous textfile
// (see Seed); the duration histogram and the last-run gauge describe the
// latest run only.
package metrics

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Session outcomes used as the "result" label.
const (
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultFailed    = "failed"
)

// Recorder holds nvconf's metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	// SessionCounter counts sessions by result (changed|unchanged|failed).
	SessionCounter *prometheus.CounterVec

	// CommandCounter counts configuration commands sent (excluding
	// detach/diff/apply/save).
	CommandCounter prometheus.Counter

	// PhaseCounter counts completed session phases.
	// Labels: phase (detach|commands|diff|apply|save)
	PhaseCounter *prometheus.CounterVec

	// SessionDuration measures wall time of a session in seconds.
	SessionDuration prometheus.Histogram

	// LastRun is the unix time of the last session, for staleness alerts.
	LastRun prometheus.Gauge
}

// NewRecorder creates and registers all metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		SessionCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nvconf_sessions_total",
				Help: "Configuration sessions by result",
			},
			[]string{"result"},
		),
		CommandCounter: f.NewCounter(prometheus.CounterOpts{
			Name: "nvconf_commands_total",
			Help: "Configuration commands sent to nv",
		}),
		PhaseCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nvconf_phase_total",
				Help: "Session phases completed",
			},
			[]string{"phase"},
		),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nvconf_session_duration_seconds",
			Help:    "Duration of configuration sessions in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "nvconf_last_run_timestamp_seconds",
			Help: "Unix time of the last configuration session",
		}),
	}
}

// Phase records an executed phase.
func (r *Recorder) Phase(phase string) {
	r.PhaseCounter.WithLabelValues(phase).Inc()
}

// Session records a finished session.
func (r *Recorder) Session(result string, commands int, d time.Duration) {
	r.SessionCounter.WithLabelValues(result).Inc()
	r.CommandCounter.Add(float64(commands))
	r.SessionDuration.Observe(d.Seconds())
	r.LastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Seed adds the counter values found in a previous textfile at path, so
// that counters keep increasing across runs. A missing file is not an error.
func (r *Recorder) Seed(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, m := range families["nvconf_sessions_total"].GetMetric() {
		r.SessionCounter.WithLabelValues(labelValue(m, "result")).Add(m.GetCounter().GetValue())
	}
	for _, m := range families["nvconf_commands_total"].GetMetric() {
		r.CommandCounter.Add(m.GetCounter().GetValue())
	}
	for _, m := range families["nvconf_phase_total"].GetMetric() {
		r.PhaseCounter.WithLabelValues(labelValue(m, "phase")).Add(m.GetCounter().GetValue())
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
