package model

import "fmt"

// ConnectorType identifies a charging connector standard.
type ConnectorType string

const (
	ConnectorCCS     ConnectorType = "ccs"
	ConnectorCHAdeMO ConnectorType = "chademo"
	ConnectorType2   ConnectorType = "type2"
)

// ParseConnectorType validates the textual form of a connector standard.
func ParseConnectorType(s string) (ConnectorType, error) {
	switch ct := ConnectorType(s); ct {
	case ConnectorCCS, ConnectorCHAdeMO, ConnectorType2:
		return ct, nil
	default:
		return "", fmt.Errorf("unknown connector type %q", s)
	}
}

// Availability is the reported state of a charging station.
type Availability int

const (
	StationAvailable Availability = iota
	StationOccupied
	StationOffline
)

// String returns a human-readable representation of the availability.
func (a Availability) String() string {
	switch a {
	case StationAvailable:
		return "available"
	case StationOccupied:
		return "occupied"
	case StationOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ParseAvailability maps the textual form used by the station feed back to
// an Availability. Unknown values are treated as offline so the planner never
// routes through a station it cannot classify.
func ParseAvailability(s string) Availability {
	switch s {
	case "available":
		return StationAvailable
	case "occupied":
		return StationOccupied
	default:
		return StationOffline
	}
}

// MarshalText implements encoding.TextMarshaler for JSON payloads.
func (a Availability) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Availability) UnmarshalText(b []byte) error {
	*a = ParseAvailability(string(b))
	return nil
}

// ChargingStation is a snapshot of one station record. Records are produced
// by the station feed and never mutated after a snapshot is built; staleness
// is bounded by the snapshot refresh interval.
type ChargingStation struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Pos          LatLng        `json:"pos"`
	Connector    ConnectorType `json:"connector"`
	RatedPowerKW float64       `json:"rated_power_kw"`
	Availability Availability  `json:"availability"`
	PricePerKWh  float64       `json:"price_per_kwh"`
}
