package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for one registerer. A nil
// *Metrics is valid and every method on it is then a no-op, so callers that
// never enable metrics don't need to guard every call site.
type Metrics struct {
	runCount       *prometheus.CounterVec
	runLatency     *prometheus.HistogramVec
	branchRewrites *prometheus.CounterVec
	lastRunTS      *prometheus.GaugeVec
	mappedCommits  *prometheus.GaugeVec
	pushCount      *prometheus.CounterVec
}

// New registers the git_filter_mirror_* collectors on registerer and returns
// a Metrics to record against. Mirrors repository/metrics.go#EnableMetrics.
func New(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "git_filter_mirror_run_total",
			Help:      "Count of rewrite-and-publish runs, tagged by result.",
		}, []string{"destination", "success"}),

		runLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "git_filter_mirror_run_latency_seconds",
			Help:      "Latency of a full rewrite-and-publish run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"destination"}),

		branchRewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "git_filter_mirror_branch_rewrite_total",
			Help:      "Count of per-branch rewrite invocations, tagged by branch and result.",
		}, []string{"destination", "branch", "success"}),

		lastRunTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "git_filter_mirror_last_success_timestamp_seconds",
			Help:      "Timestamp of the last successful run.",
		}, []string{"destination"}),

		mappedCommits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "git_filter_mirror_mapped_commits",
			Help:      "Number of entries in filter.map after the last run.",
		}, []string{"destination"}),

		pushCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "git_filter_mirror_push_total",
			Help:      "Count of destination pushes, tagged by kind (publish/prune) and result.",
		}, []string{"destination", "kind", "success"}),
	}

	registerer.MustRegister(
		m.runCount,
		m.runLatency,
		m.branchRewrites,
		m.lastRunTS,
		m.mappedCommits,
		m.pushCount,
	)

	return m
}

func (m *Metrics) RecordRun(destination string, success bool, start time.Time) {
	if m == nil {
		return
	}
	m.runCount.WithLabelValues(destination, boolLabel(success)).Inc()
	m.runLatency.WithLabelValues(destination).Observe(time.Since(start).Seconds())
	if success {
		m.lastRunTS.WithLabelValues(destination).Set(float64(time.Now().Unix()))
	}
}

func (m *Metrics) RecordBranchRewrite(destination, branch string, success bool) {
	if m == nil {
		return
	}
	m.branchRewrites.WithLabelValues(destination, branch, boolLabel(success)).Inc()
}

func (m *Metrics) RecordMappedCommits(destination string, count int) {
	if m == nil {
		return
	}
	m.mappedCommits.WithLabelValues(destination).Set(float64(count))
}

func (m *Metrics) RecordPush(destination, kind string, success bool) {
	if m == nil {
		return
	}
	m.pushCount.WithLabelValues(destination, kind, boolLabel(success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
