// Package metrics registers and records the prometheus metrics for a
// git-filter-mirror run: outcome counters, branch-rewrite latency, and push
// results, as a Namespace/Help-documented metric set registered on a
// caller-supplied prometheus.Registerer.
package metrics
