// Package events defines the payloads published on the internal event bus.
// The metrics collector consumes them; other subscribers (the navigation
// status stream) filter for what they need.
package events

import "time"

// PlanCompleted is published after every planning request, successful or not.
type PlanCompleted struct {
	PlanID      string
	Source      string
	Destination string
	Candidates  int
	Feasible    int
	Stops       int
	Duration    time.Duration
	TimedOut    bool
	Err         error
	Time        time.Time
}

// SessionTransitioned is published on every navigation state change.
type SessionTransitioned struct {
	SessionID string
	From      string
	To        string
	Time      time.Time
}
