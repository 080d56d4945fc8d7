package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func validTestProfile() VehicleProfile {
	return VehicleProfile{
		BatteryCapacityKWh: 40,
		ConsumptionCurve:   []CurvePoint{{X: 0, Y: 0.15}, {X: 130, Y: 0.22}},
		ChargingCurve:      []CurvePoint{{X: 0, Y: 150}, {X: 1, Y: 20}},
		Connectors:         []ConnectorType{ConnectorCCS},
	}
}

func TestProfileValidate(t *testing.T) {
	if err := validTestProfile().Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*VehicleProfile)
	}{
		{"zero capacity", func(p *VehicleProfile) { p.BatteryCapacityKWh = 0 }},
		{"empty consumption curve", func(p *VehicleProfile) { p.ConsumptionCurve = nil }},
		{"empty charging curve", func(p *VehicleProfile) { p.ChargingCurve = nil }},
		{"no connectors", func(p *VehicleProfile) { p.Connectors = nil }},
		{"negative curve value", func(p *VehicleProfile) {
			p.ChargingCurve = []CurvePoint{{X: 0, Y: -1}, {X: 1, Y: 20}}
		}},
		{"non increasing x", func(p *VehicleProfile) {
			p.ConsumptionCurve = []CurvePoint{{X: 50, Y: 0.15}, {X: 50, Y: 0.2}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validTestProfile()
			tc.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
				t.Fatalf("expected ErrInvalidProfile, got %v", err)
			}
		})
	}
}

func TestSupportsConnector(t *testing.T) {
	p := validTestProfile()
	if !p.SupportsConnector(ConnectorCCS) {
		t.Fatalf("ccs should be supported")
	}
	if p.SupportsConnector(ConnectorCHAdeMO) {
		t.Fatalf("chademo should not be supported")
	}
}

func TestAvailabilityJSON(t *testing.T) {
	raw, err := json.Marshal(ChargingStation{ID: "st-a", Availability: StationOccupied, RatedPowerKW: 50})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var st ChargingStation
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Availability != StationOccupied {
		t.Fatalf("availability round-trip got %v", st.Availability)
	}

	var unknown ChargingStation
	if err := json.Unmarshal([]byte(`{"id":"x","availability":"busy"}`), &unknown); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if unknown.Availability != StationOffline {
		t.Fatalf("unknown availability should map to offline, got %v", unknown.Availability)
	}
}

func TestParseConnectorType(t *testing.T) {
	ct, err := ParseConnectorType("type2")
	if err != nil || ct != ConnectorType2 {
		t.Fatalf("parse type2: %v %v", ct, err)
	}
	if _, err := ParseConnectorType("tesla"); err == nil {
		t.Fatalf("expected error for unknown connector")
	}
}
