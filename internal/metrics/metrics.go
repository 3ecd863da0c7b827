// Package metrics holds the domain counters exported at /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the domain counters.
type Metrics struct {
	purged         *prometheus.CounterVec
	purgeRuns      *prometheus.CounterVec
	shareDownloads *prometheus.CounterVec
	auditFailures  prometheus.Counter
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		purged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_purged_items_total",
				Help: "Items permanently removed from the trash.",
			},
			[]string{"resource_type", "reason"},
		),
		purgeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_purge_runs_total",
				Help: "Scheduled purge sweeps by outcome.",
			},
			[]string{"outcome"},
		),
		shareDownloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_share_downloads_total",
				Help: "Share link download attempts by result.",
			},
			[]string{"result"},
		),
		auditFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "filevault_audit_failures_total",
				Help: "Activity log entries that could not be written.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.purged, m.purgeRuns, m.shareDownloads, m.auditFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObservePurge counts n purged items of a resource type. reason is "expired" or "manual".
func (m *Metrics) ObservePurge(resourceType, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.WithLabelValues(resourceType, reason).Add(float64(n))
}

// ObservePurgeRun counts one scheduled sweep.
func (m *Metrics) ObservePurgeRun(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.purgeRuns.WithLabelValues(outcome).Inc()
}

// ObserveShareDownload counts a share download attempt.
func (m *Metrics) ObserveShareDownload(result string) {
	if m == nil {
		return
	}
	m.shareDownloads.WithLabelValues(result).Inc()
}

// ObserveAuditFailure counts a dropped activity log entry.
func (m *Metrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}
