package model

import "time"

// RouteCandidate is one base path between source and destination produced by
// the candidate generator. It is created fresh per request and never mutated
// afterwards; stop insertion copies it into an AugmentedRoute.
type RouteCandidate struct {
	// Segments are the traversed edges in order.
	Segments []RoadSegment `json:"segments"`
	// Points are the waypoint positions along the path, len(Segments)+1
	// entries, Points[i] being the start of Segments[i].
	Points []LatLng `json:"points"`
	// DistanceM is the cumulative distance of all segments.
	DistanceM float64 `json:"distance_m"`
	// BaseEnergyKWh is the cumulative energy cost without any charging.
	BaseEnergyKWh float64 `json:"base_energy_kwh"`
}

// ChargeStop is one inserted charging halt on an augmented route.
type ChargeStop struct {
	Station ChargingStation `json:"station"`
	// SegmentIndex is the index of the point along the candidate at which
	// the detour to the station begins.
	SegmentIndex int `json:"segment_index"`
	// ArrivalKWh and DepartureKWh are the battery states at the station.
	// Charging only adds energy, so DepartureKWh >= ArrivalKWh.
	ArrivalKWh   float64 `json:"arrival_kwh"`
	DepartureKWh float64 `json:"departure_kwh"`
	// DetourM is the one-way off-route distance to reach the station.
	DetourM float64 `json:"detour_m"`
	// Dwell is the time spent charging.
	Dwell time.Duration `json:"dwell_seconds"`
	// ArrivalOffset is the elapsed trip time when the vehicle reaches the
	// station, used to keep stops ordered by arrival time.
	ArrivalOffset time.Duration `json:"arrival_offset_seconds"`
	// Fallback is an occupied but otherwise compatible station recorded at
	// plan time, used by live navigation if the primary is taken on arrival.
	Fallback *ChargingStation `json:"fallback,omitempty"`
}

// AugmentedRoute is a route candidate with charging stops inserted. This is
// the unit returned to clients.
type AugmentedRoute struct {
	Candidate RouteCandidate `json:"candidate"`
	Stops     []ChargeStop   `json:"stops"`

	DriveTime  time.Duration `json:"drive_time_seconds"`
	ChargeTime time.Duration `json:"charge_time_seconds"`
	TotalTime  time.Duration `json:"total_time_seconds"`

	// TotalEnergyKWh is the energy consumed end to end, detours included.
	TotalEnergyKWh float64 `json:"total_energy_kwh"`
	// ChargeCost is the sum over stops of energy bought times station price.
	ChargeCost float64 `json:"charge_cost"`
	// ArrivalKWh is the projected battery state at the destination.
	ArrivalKWh float64 `json:"arrival_kwh"`

	// Feasible is false when no charging solution keeps the battery above
	// the reserve floor. Infeasible routes are still returned so clients can
	// explain why a candidate was rejected.
	Feasible bool `json:"feasible"`
	// Recommended marks the ranker's top choice.
	Recommended bool `json:"recommended"`
}

// StopCount returns the number of charging stops.
func (r AugmentedRoute) StopCount() int { return len(r.Stops) }
