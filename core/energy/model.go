package energy

import (
	"time"

	"gonum.org/v1/gonum/interp"

	"github.com/voltroute/planner/core/model"
)

// Default physics constants. Climb cost approximates a mid-size EV
// (~1800 kg): m*g*h converted to kWh per meter of elevation gain.
const (
	defaultClimbKWhPerM    = 0.0049
	defaultRegenEfficiency = 0.6

	// chargeStep is the integration step used when walking the charging
	// curve. Charging sessions run tens of minutes, so 30 s keeps the
	// integration error well below a percent.
	chargeStep = 30 * time.Second

	// minChargePowerKW is the taper cutoff: below this rate additional dwell
	// is considered wasted and integration stops.
	minChargePowerKW = 1.0
)

// Model converts distances, elevation and charging curves into energy. It is
// a deterministic pure function of its inputs and safe for concurrent use.
type Model struct {
	ClimbKWhPerM    float64
	RegenEfficiency float64
}

// NewModel returns a model with the default physics constants.
func NewModel() Model {
	return Model{ClimbKWhPerM: defaultClimbKWhPerM, RegenEfficiency: defaultRegenEfficiency}
}

// curve evaluates a vehicle curve at x, clamping outside the sampled domain.
// Single-point curves are treated as constants.
type curve struct {
	pl       interp.PiecewiseLinear
	constant float64
	fitted   bool
}

func newCurve(points []model.CurvePoint) curve {
	if len(points) < 2 {
		c := curve{}
		if len(points) == 1 {
			c.constant = points[0].Y
		}
		return c
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		// Validate rejects non-increasing xs before planning starts.
		return curve{constant: ys[0]}
	}
	return curve{pl: pl, fitted: true}
}

func (c curve) at(x float64) float64 {
	if !c.fitted {
		return c.constant
	}
	return c.pl.Predict(x)
}

// ForSegment returns the energy in kWh consumed traversing seg. Descents
// recover energy at the regen efficiency but a segment never nets below
// zero: there is no free energy from a hill.
func (m Model) ForSegment(seg model.RoadSegment, p model.VehicleProfile) float64 {
	e := m.ForDistance(seg.DistanceM, seg.Class, p)
	if seg.ElevationDeltaM > 0 {
		e += seg.ElevationDeltaM * m.ClimbKWhPerM
	} else {
		e += seg.ElevationDeltaM * m.ClimbKWhPerM * m.RegenEfficiency
	}
	if e < 0 {
		return 0
	}
	return e
}

// ForDistance returns the flat-ground energy for a distance driven at the
// class speed, used for segments and for station detours.
func (m Model) ForDistance(distM float64, class model.RoadClass, p model.VehicleProfile) float64 {
	perKm := newCurve(p.ConsumptionCurve).at(class.SpeedKmh())
	return distM / 1000.0 * perKm
}

// ChargeGained integrates the vehicle's charging curve against the station's
// rated power for the given dwell and returns the energy added in kWh,
// capped at the battery capacity.
func (m Model) ChargeGained(st model.ChargingStation, startKWh float64, dwell time.Duration, p model.VehicleProfile) float64 {
	gained, _ := m.integrate(st, startKWh, p, func(elapsed time.Duration, kwh float64) bool {
		return elapsed >= dwell
	})
	return gained
}

// DwellFor inverts ChargeGained: it returns the dwell needed to add
// targetKWh starting from startKWh, along with the energy actually
// reachable. When the taper cutoff or the battery capacity is hit first the
// returned energy is less than the target.
func (m Model) DwellFor(st model.ChargingStation, startKWh, targetKWh float64, p model.VehicleProfile) (time.Duration, float64) {
	gained, elapsed := m.integrate(st, startKWh, p, func(_ time.Duration, kwh float64) bool {
		return kwh >= targetKWh
	})
	return elapsed, gained
}

// integrate steps the charging curve until done reports true or charging
// stalls. It returns the energy gained and the elapsed dwell.
func (m Model) integrate(st model.ChargingStation, startKWh float64, p model.VehicleProfile, done func(time.Duration, float64) bool) (float64, time.Duration) {
	c := newCurve(p.ChargingCurve)
	stepH := chargeStep.Hours()

	kwh := startKWh
	var elapsed time.Duration
	for !done(elapsed, kwh-startKWh) {
		if kwh >= p.BatteryCapacityKWh {
			break
		}
		soc := kwh / p.BatteryCapacityKWh
		power := c.at(soc)
		if power > st.RatedPowerKW {
			power = st.RatedPowerKW
		}
		if power < minChargePowerKW {
			break
		}
		kwh += power * stepH
		elapsed += chargeStep
	}
	if kwh > p.BatteryCapacityKWh {
		kwh = p.BatteryCapacityKWh
	}
	return kwh - startKWh, elapsed
}
