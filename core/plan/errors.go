package plan

import "errors"

// Error taxonomy of the planning pipeline. ErrNoPathFound comes from the
// candidate generator and is surfaced unchanged. An infeasible route is not
// an error: it is returned as a marked result so clients can explain it.
var (
	// ErrTimeout is returned when the planning budget elapses before any
	// usable result exists. If at least one augmented route was produced the
	// pipeline returns it with a partial flag instead.
	ErrTimeout = errors.New("planning timed out")

	// ErrNoCandidates is returned when the generator yields nothing for a
	// reason other than a disconnected graph.
	ErrNoCandidates = errors.New("no route candidates")
)
