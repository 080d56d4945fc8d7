package planlog

import (
	"context"

	"github.com/voltroute/planner/core/events"
	"github.com/voltroute/planner/core/logger"
	"github.com/voltroute/planner/internal/eventbus"
)

// StartRecorder subscribes to the bus and appends every completed plan to
// the store. It returns after launching the consumer goroutine, which stops
// when ctx is cancelled or the bus closes.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store Store, log logger.Logger) {
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
				pc, ok := ev.(events.PlanCompleted)
				if !ok {
					continue
				}
				rec := Record{
					Timestamp:   pc.Time,
					PlanID:      pc.PlanID,
					Source:      pc.Source,
					Destination: pc.Destination,
					Routes:      pc.Candidates,
					Feasible:    pc.Feasible,
					Stops:       pc.Stops,
					Duration:    pc.Duration,
					TimedOut:    pc.TimedOut,
				}
				if pc.Err != nil {
					rec.Err = pc.Err.Error()
				}
				if err := store.Append(ctx, rec); err != nil && log != nil {
					log.Errorf("plan log append: %v", err)
				}
			}
		}
	}()
}
