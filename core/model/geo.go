package model

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Waypoint is a node of the road graph: an intersection or named place.
// Immutable once loaded.
type Waypoint struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Pos  LatLng `json:"pos"`
}

// RoadClass groups road segments by the speed they support.
type RoadClass int

const (
	RoadResidential RoadClass = iota
	RoadSecondary
	RoadPrimary
	RoadMotorway
)

// String returns a human-readable representation of the road class.
func (c RoadClass) String() string {
	switch c {
	case RoadResidential:
		return "residential"
	case RoadSecondary:
		return "secondary"
	case RoadPrimary:
		return "primary"
	case RoadMotorway:
		return "motorway"
	default:
		return "unknown"
	}
}

// SpeedKmh returns the cruising speed assumed for the class.
func (c RoadClass) SpeedKmh() float64 {
	switch c {
	case RoadMotorway:
		return 110
	case RoadPrimary:
		return 80
	case RoadSecondary:
		return 60
	default:
		return 40
	}
}

// ParseRoadClass maps a textual class from graph data to a RoadClass.
// Unknown values fall back to residential, the slowest class.
func ParseRoadClass(s string) RoadClass {
	switch s {
	case "motorway":
		return RoadMotorway
	case "primary":
		return RoadPrimary
	case "secondary":
		return RoadSecondary
	default:
		return RoadResidential
	}
}

// RoadSegment is a directed traversable edge between two waypoints,
// referenced by index into the graph arena. Read-only to consumers.
type RoadSegment struct {
	From            int32     `json:"from"`
	To              int32     `json:"to"`
	DistanceM       float64   `json:"distance_m"`
	ElevationDeltaM float64   `json:"elevation_delta_m"`
	Class           RoadClass `json:"class"`
}

// TravelTimeSeconds is the drive time of the segment at the class speed.
func (s RoadSegment) TravelTimeSeconds() float64 {
	return s.DistanceM / (s.Class.SpeedKmh() / 3.6)
}
