package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/rustsec-audit-action/pkg/advisory"
)

// Metrics holds the metrics of one audit run on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Findings       *prometheus.GaugeVec
	Ignored        prometheus.Gauge
	Actions        *prometheus.CounterVec
	TrackerRetries *prometheus.CounterVec
	Duration       prometheus.Gauge
	LastRun        prometheus.Gauge
	ExitCode       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.Findings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rustsec_audit_findings",
			Help: "Findings of the last audit by kind, ignored findings excluded",
		},
		[]string{"kind"},
	)
	m.Ignored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rustsec_audit_ignored_findings",
			Help: "Findings suppressed by the ignore list",
		},
	)
	m.Actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustsec_audit_issue_actions_total",
			Help: "Issue actions applied by type",
		},
		[]string{"action"},
	)
	m.TrackerRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustsec_audit_tracker_retries_total",
			Help: "Retried issue tracker calls",
		},
		[]string{"op"},
	)
	m.Duration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rustsec_audit_duration_seconds",
			Help: "Duration of the last audit run",
		},
	)
	m.LastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rustsec_audit_last_run_timestamp_seconds",
			Help: "Unix time of the last audit run",
		},
	)
	m.ExitCode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rustsec_audit_exit_code",
			Help: "Exit code of the last audit run",
		},
	)

	m.Registry.MustRegister(
		m.Findings,
		m.Ignored,
		m.Actions,
		m.TrackerRetries,
		m.Duration,
		m.LastRun,
		m.ExitCode,
	)
	return m
}

// ObserveFindings sets the per-kind gauges, zeroing kinds with no findings.
func (m *Metrics) ObserveFindings(findings []advisory.Finding, ignored int) {
	counts := make(map[advisory.Kind]int)
	for _, f := range findings {
		counts[f.Kind]++
	}
	for _, k := range []advisory.Kind{
		advisory.KindVulnerability,
		advisory.KindUnsound,
		advisory.KindYanked,
		advisory.KindNotice,
		advisory.KindUnmaintained,
		advisory.KindOther,
	} {
		m.Findings.WithLabelValues(k.String()).Set(float64(counts[k]))
	}
	m.Ignored.Set(float64(ignored))
}

// ObserveRetry has the signature of tracker.RetryPolicy.OnRetry.
func (m *Metrics) ObserveRetry(op string, _ int, _ error) {
	m.TrackerRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveRun(start time.Time, exitCode int) {
	m.Duration.Set(time.Since(start).Seconds())
	m.LastRun.Set(float64(time.Now().Unix()))
	m.ExitCode.Set(float64(exitCode))
}

// WriteTextfile writes the metrics for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push sends the metrics to a Pushgateway, replacing the group of job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
