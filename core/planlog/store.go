// Package planlog persists planning outcomes for offline analysis: how many
// requests time out, how often no feasible route exists, how stop counts
// evolve as the station network grows.
package planlog

import (
	"context"
	"time"
)

// Record captures one completed planning request.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	PlanID      string    `json:"plan_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Routes      int       `json:"routes"`
	Feasible    int       `json:"feasible"`
	// Stops is the charge stop count of the recommended route, -1 when no
	// feasible route was produced.
	Stops    int           `json:"stops"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
	Err      string        `json:"err,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start        time.Time
	End          time.Time
	PlanID       string
	OnlyFeasible bool
	OnlyFailed   bool
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.PlanID != "" && r.PlanID != q.PlanID {
		return false
	}
	if q.OnlyFeasible && r.Feasible == 0 {
		return false
	}
	if q.OnlyFailed && r.Err == "" && !r.TimedOut {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
