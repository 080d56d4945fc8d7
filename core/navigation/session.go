package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/voltroute/planner/core/model"
)

// Status is the state of a navigation session.
type Status int

const (
	StatusOnTrack Status = iota
	StatusDeviated
	StatusRerouting
	StatusArrived
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusOnTrack:
		return "on_track"
	case StatusDeviated:
		return "deviated"
	case StatusRerouting:
		return "rerouting"
	case StatusArrived:
		return "arrived"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool {
	return s == StatusArrived || s == StatusAborted
}

// transitions is the guard table of the session state machine. Aborted is
// reachable from every live state via explicit cancellation.
var transitions = map[Status][]Status{
	StatusOnTrack:   {StatusDeviated, StatusRerouting, StatusArrived, StatusAborted},
	StatusDeviated:  {StatusOnTrack, StatusRerouting, StatusArrived, StatusAborted},
	StatusRerouting: {StatusOnTrack, StatusArrived, StatusAborted},
}

func (s Status) canTransition(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Session tracks one vehicle following one augmented route. A session is
// single-owner: all mutation goes through its mutex, and position updates
// are applied in monotonic-timestamp order with stale updates dropped.
type Session struct {
	ID string

	mu      sync.Mutex
	status  Status
	route   model.AugmentedRoute
	profile model.VehicleProfile

	pos      model.LatLng
	soc      float64
	lastTS   int64
	lastSeen time.Time

	// progress is the furthest point index along the current route the
	// vehicle has been observed next to. It never moves backwards.
	progress int
	// deviatedAt is the update timestamp at which the current deviation
	// episode started, 0 when on the path.
	deviatedAt int64

	// routeDirty marks that the route changed since the client last saw it.
	routeDirty bool
	warning    string

	retries      int
	replanGen    uint64
	replanCancel context.CancelFunc
}

// View is a read-only copy of session state handed to callers.
type View struct {
	ID       string               `json:"id"`
	Status   string               `json:"status"`
	Position model.LatLng         `json:"position"`
	SoC      float64              `json:"soc"`
	Route    model.AugmentedRoute `json:"route"`
}

func (s *Session) view() View {
	return View{
		ID:       s.ID,
		Status:   s.status.String(),
		Position: s.pos,
		SoC:      s.soc,
		Route:    s.route,
	}
}

// destination is the last point of the current route.
func (s *Session) destination() model.LatLng {
	pts := s.route.Candidate.Points
	return pts[len(pts)-1]
}

// nextStop returns the first charge stop the vehicle has not yet passed. A
// stop counts as passed once progress has moved beyond its route point.
func (s *Session) nextStop() (int, model.ChargeStop, bool) {
	for i, stop := range s.route.Stops {
		if stop.SegmentIndex >= s.progress {
			return i, stop, true
		}
	}
	return 0, model.ChargeStop{}, false
}

func (s *Session) cancelReplan() {
	if s.replanCancel != nil {
		s.replanCancel()
		s.replanCancel = nil
	}
}
