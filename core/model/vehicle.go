package model

import (
	"errors"
	"fmt"
)

// ErrInvalidProfile is wrapped by VehicleProfile.Validate failures so callers
// can reject malformed input before planning starts.
var ErrInvalidProfile = errors.New("invalid vehicle profile")

// CurvePoint is one sample of a vehicle curve. The meaning of X depends on
// the curve: speed in km/h for the consumption curve, state of charge in
// [0,1] for the charging curve.
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VehicleProfile describes the energy characteristics of one vehicle. It is
// supplied per request and treated as immutable for the duration of a
// planning call.
type VehicleProfile struct {
	// BatteryCapacityKWh is the usable battery capacity.
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`
	// ConsumptionCurve maps speed (km/h) to consumption (kWh per km).
	ConsumptionCurve []CurvePoint `json:"consumption_curve"`
	// ChargingCurve maps state of charge (0..1) to the maximum power the
	// vehicle accepts (kW). Charge rate tapers as SoC rises.
	ChargingCurve []CurvePoint `json:"charging_curve"`
	// Connectors lists the connector types the vehicle can use.
	Connectors []ConnectorType `json:"connectors"`
}

// Validate checks that the profile is usable for planning.
func (p VehicleProfile) Validate() error {
	if p.BatteryCapacityKWh <= 0 {
		return fmt.Errorf("%w: battery capacity must be positive", ErrInvalidProfile)
	}
	if len(p.ConsumptionCurve) == 0 {
		return fmt.Errorf("%w: consumption curve is empty", ErrInvalidProfile)
	}
	if len(p.ChargingCurve) == 0 {
		return fmt.Errorf("%w: charging curve is empty", ErrInvalidProfile)
	}
	if len(p.Connectors) == 0 {
		return fmt.Errorf("%w: no connector types", ErrInvalidProfile)
	}
	if err := validateCurve(p.ConsumptionCurve); err != nil {
		return fmt.Errorf("%w: consumption curve: %v", ErrInvalidProfile, err)
	}
	if err := validateCurve(p.ChargingCurve); err != nil {
		return fmt.Errorf("%w: charging curve: %v", ErrInvalidProfile, err)
	}
	return nil
}

func validateCurve(c []CurvePoint) error {
	for i, pt := range c {
		if pt.Y < 0 {
			return fmt.Errorf("negative value at point %d", i)
		}
		if i > 0 && pt.X <= c[i-1].X {
			return fmt.Errorf("x values must be strictly increasing at point %d", i)
		}
	}
	return nil
}

// SupportsConnector reports whether the vehicle can charge at a station with
// the given connector type.
func (p VehicleProfile) SupportsConnector(ct ConnectorType) bool {
	for _, c := range p.Connectors {
		if c == ct {
			return true
		}
	}
	return false
}
