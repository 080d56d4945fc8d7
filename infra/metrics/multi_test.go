package metrics

import (
	"testing"

	coremetrics "github.com/voltroute/planner/core/metrics"
)

// countingSink implements only the base MetricsSink interface.
type countingSink struct {
	plans int
}

func (s *countingSink) RecordPlanResult(coremetrics.PlanResult) error {
	s.plans++
	return nil
}

// fullSink also records transitions and refreshes.
type fullSink struct {
	countingSink
	transitions int
	refreshes   int
}

func (s *fullSink) RecordSessionTransition(coremetrics.SessionTransition) error {
	s.transitions++
	return nil
}

func (s *fullSink) RecordSnapshotRefresh(coremetrics.SnapshotRefresh) error {
	s.refreshes++
	return nil
}

func TestMultiSinkFanout(t *testing.T) {
	base := &countingSink{}
	full := &fullSink{}
	m := NewMultiSink(base, full)

	if err := m.RecordPlanResult(coremetrics.PlanResult{}); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if err := m.RecordSessionTransition(coremetrics.SessionTransition{}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := m.RecordSnapshotRefresh(coremetrics.SnapshotRefresh{}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if base.plans != 1 || full.plans != 1 {
		t.Fatalf("plan fanout: base=%d full=%d", base.plans, full.plans)
	}
	// The base sink does not implement the optional recorders and is skipped.
	if full.transitions != 1 || full.refreshes != 1 {
		t.Fatalf("optional fanout: transitions=%d refreshes=%d", full.transitions, full.refreshes)
	}
}

func TestNewSinkDisabled(t *testing.T) {
	sink, err := NewSink(coremetrics.Config{})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", sink)
	}
}
