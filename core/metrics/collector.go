package metrics

import (
	"context"

	"github.com/voltroute/planner/core/events"
	"github.com/voltroute/planner/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards events to the
// sink. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.PlanCompleted:
					errStr := ""
					if e.Err != nil {
						errStr = e.Err.Error()
					}
					_ = sink.RecordPlanResult(PlanResult{
						PlanID:      e.PlanID,
						Source:      e.Source,
						Destination: e.Destination,
						Candidates:  e.Candidates,
						Feasible:    e.Feasible,
						Stops:       e.Stops,
						Duration:    e.Duration,
						TimedOut:    e.TimedOut,
						Err:         errStr,
						Time:        e.Time,
					})
				case events.SessionTransitioned:
					if r, ok := sink.(SessionRecorder); ok {
						_ = r.RecordSessionTransition(SessionTransition{
							SessionID: e.SessionID,
							From:      e.From,
							To:        e.To,
							Time:      e.Time,
						})
					}
				}
			}
		}
	}()
}
