package metrics

import coremetrics "github.com/voltroute/planner/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanResult forwards the result to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordPlanResult(res coremetrics.PlanResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordSessionTransition forwards transitions to sinks that support them.
func (m *MultiSink) RecordSessionTransition(ev coremetrics.SessionTransition) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SessionRecorder); ok {
			if err := rec.RecordSessionTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSnapshotRefresh forwards refresh events to sinks that support them.
func (m *MultiSink) RecordSnapshotRefresh(ev coremetrics.SnapshotRefresh) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SnapshotRecorder); ok {
			if err := rec.RecordSnapshotRefresh(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
