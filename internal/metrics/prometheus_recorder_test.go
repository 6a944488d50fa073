package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("process_items", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("process_items", ResultSuccess)
	pr.IncBuildOutcome("success")
	pr.AddItemsBuilt(3)
	pr.IncJournalChange("added")
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("x", time.Second)
	pr.ObserveBuildDuration(time.Second)
	pr.IncStageResult("x", ResultFailed)
	pr.IncBuildOutcome("failed")
	pr.AddItemsBuilt(1)
	pr.IncJournalChange("none")
}
