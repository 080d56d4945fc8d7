package metrics

import "time"

// PlanResult summarizes one planning request for observability purposes.
type PlanResult struct {
	PlanID      string
	Source      string
	Destination string
	Candidates  int
	Feasible    int
	// Stops is the charge stop count of the recommended route, -1 when no
	// route was produced.
	Stops    int
	Duration time.Duration
	TimedOut bool
	Err      string
	Time     time.Time
}

// MetricsSink records planning results.
type MetricsSink interface {
	RecordPlanResult(res PlanResult) error
}

// SessionTransition captures one navigation state machine transition.
type SessionTransition struct {
	SessionID string
	From      string
	To        string
	Time      time.Time
}

// SessionRecorder records navigation session transitions.
type SessionRecorder interface {
	RecordSessionTransition(ev SessionTransition) error
}

// SnapshotRefresh captures one station index refresh cycle.
type SnapshotRefresh struct {
	Stations int
	Duration time.Duration
	Err      string
	Time     time.Time
}

// SnapshotRecorder records station snapshot refreshes.
type SnapshotRecorder interface {
	RecordSnapshotRefresh(ev SnapshotRefresh) error
}

// NopSink implements every recorder interface with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlanResult(PlanResult) error               { return nil }
func (NopSink) RecordSessionTransition(SessionTransition) error { return nil }
func (NopSink) RecordSnapshotRefresh(SnapshotRefresh) error     { return nil }
