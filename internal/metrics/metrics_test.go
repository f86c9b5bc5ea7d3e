package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew_recordsWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("", reg)

	m.RecordRun("dest", true, time.Now())
	m.RecordBranchRewrite("dest", "main", true)
	m.RecordMappedCommits("dest", 5)
	m.RecordPush("dest", "publish", false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family to be registered")
	}
}

func TestNilMetrics_isNoop(t *testing.T) {
	var m *Metrics
	m.RecordRun("dest", true, time.Now())
	m.RecordBranchRewrite("dest", "main", true)
	m.RecordMappedCommits("dest", 5)
	m.RecordPush("dest", "publish", false)
}
