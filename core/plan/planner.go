package plan

import (
	"sort"
	"time"

	"github.com/voltroute/planner/core/energy"
	"github.com/voltroute/planner/core/geo"
	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/stations"
)

// detourClass is the road class assumed for the off-route leg to a charging
// station: stations sit on local roads, not on the motorway itself.
const detourClass = model.RoadResidential

// maxStops bounds insertion per candidate. A route needing more halts than
// this is degenerate for the trip lengths the service handles and is marked
// infeasible instead of looping.
const maxStops = 8

// Config holds the insertion policy. The values are deployment choices, not
// algorithm constants, and come from configuration.
type Config struct {
	// ReserveFloorPct is the battery fraction that must never be breached
	// between stops.
	ReserveFloorPct float64 `json:"reserve_floor_pct"`
	// CorridorRadiusM is the search radius around the route for stations.
	CorridorRadiusM float64 `json:"corridor_radius_m"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ReserveFloorPct <= 0 {
		c.ReserveFloorPct = 0.05
	}
	if c.CorridorRadiusM <= 0 {
		c.CorridorRadiusM = 5000
	}
}

// Planner inserts charging stops into route candidates so the projected
// battery never crosses the reserve floor. Stateless apart from its policy;
// safe for concurrent use over a shared station index.
type Planner struct {
	energy energy.Model
	index  stations.Index
	cfg    Config
}

// NewPlanner wires an insertion planner.
func NewPlanner(em energy.Model, index stations.Index, cfg Config) *Planner {
	cfg.SetDefaults()
	return &Planner{energy: em, index: index, cfg: cfg}
}

// visited is one reachable point along the candidate since the last stop,
// kept so insertion can walk back to the furthest usable node.
type visited struct {
	node    int           // index into candidate.Points
	kwh     float64       // battery on arrival at the node
	elapsed time.Duration // trip time on arrival at the node
	// Accumulator snapshots at the node, so a backtracked insertion can
	// discard the totals of the abandoned projection past it.
	driveTime time.Duration
	energyKWh float64
}

// Plan walks the candidate and inserts charging stops where the battery
// projection would cross the reserve floor. startSoC is a fraction in [0,1].
// An infeasible candidate is returned with Feasible=false, never discarded.
func (p *Planner) Plan(candidate model.RouteCandidate, startSoC float64, profile model.VehicleProfile) model.AugmentedRoute {
	out := model.AugmentedRoute{Candidate: candidate, Feasible: true}
	reserve := p.cfg.ReserveFloorPct * profile.BatteryCapacityKWh
	battery := startSoC * profile.BatteryCapacityKWh

	if len(candidate.Segments) == 0 {
		// Zero-length trip is trivially feasible with no stops.
		out.ArrivalKWh = battery
		return out
	}

	// Per-segment energies, computed once; suffix sums give the remaining
	// energy to destination from any node.
	segEnergy := make([]float64, len(candidate.Segments))
	for i, seg := range candidate.Segments {
		segEnergy[i] = p.energy.ForSegment(seg, profile)
	}
	remaining := make([]float64, len(candidate.Segments)+1)
	for i := len(candidate.Segments) - 1; i >= 0; i-- {
		remaining[i] = remaining[i+1] + segEnergy[i]
	}

	history := []visited{{node: 0, kwh: battery}}
	var elapsed time.Duration
	canCharge := true

	for i := 0; i < len(candidate.Segments); {
		need := segEnergy[i]
		if canCharge && battery-need < reserve {
			stop, resume, ok := p.insertStop(history, candidate, profile, remaining, reserve)
			if !ok || len(out.Stops) >= maxStops {
				// No reachable compatible station: mark and finish the walk
				// without further insertion so totals stay meaningful.
				out.Feasible = false
				canCharge = false
				continue
			}
			out.Stops = append(out.Stops, stop)
			out.ChargeTime += stop.Dwell
			// The walk past the stop node was abandoned; its segment totals
			// are rolled back along with battery and elapsed time.
			out.DriveTime = resume.driveTime + resume.detourTravel
			out.TotalEnergyKWh = resume.energyKWh + resume.detourEnergy
			out.ChargeCost += (stop.DepartureKWh - stop.ArrivalKWh) * stop.Station.PricePerKWh

			battery = resume.kwh
			elapsed = resume.elapsed
			i = stop.SegmentIndex
			history = []visited{{
				node: i, kwh: battery, elapsed: elapsed,
				driveTime: out.DriveTime, energyKWh: out.TotalEnergyKWh,
			}}
			continue
		}

		battery -= need
		out.TotalEnergyKWh += need
		segTime := time.Duration(candidate.Segments[i].TravelTimeSeconds() * float64(time.Second))
		elapsed += segTime
		out.DriveTime += segTime
		i++
		history = append(history, visited{
			node: i, kwh: battery, elapsed: elapsed,
			driveTime: out.DriveTime, energyKWh: out.TotalEnergyKWh,
		})
	}

	out.ArrivalKWh = battery
	out.TotalTime = out.DriveTime + out.ChargeTime
	return out
}

// resumeState carries the post-stop simulation state back to the main walk,
// including the accumulator values at the stop node for rollback.
type resumeState struct {
	kwh          float64
	elapsed      time.Duration
	driveTime    time.Duration
	energyKWh    float64
	detourEnergy float64
	detourTravel time.Duration
}

// insertStop finds the furthest node in history from which a compatible
// available station is reachable within the corridor, sizes the charge to
// cover the distance to the destination (or the battery cap) plus the
// reserve, and returns the stop.
func (p *Planner) insertStop(history []visited, candidate model.RouteCandidate, profile model.VehicleProfile, remaining []float64, reserve float64) (model.ChargeStop, resumeState, bool) {
	for h := len(history) - 1; h >= 0; h-- {
		v := history[h]
		if v.kwh < reserve {
			continue
		}
		point := candidate.Points[v.node]
		nearby := p.index.StationsNear(point, p.cfg.CorridorRadiusM, "")

		var usable []model.ChargingStation
		var fallback *model.ChargingStation
		for _, st := range nearby {
			if !profile.SupportsConnector(st.Connector) {
				continue
			}
			switch st.Availability {
			case model.StationAvailable:
				usable = append(usable, st)
			case model.StationOccupied:
				// Remember the best occupied candidate for replanning if the
				// primary choice fails at arrival.
				if fallback == nil || betterFallback(st, *fallback, point) {
					s := st
					fallback = &s
				}
			}
		}
		if len(usable) == 0 {
			continue
		}

		sort.SliceStable(usable, func(i, j int) bool {
			di := geo.HaversineM(point, usable[i].Pos)
			dj := geo.HaversineM(point, usable[j].Pos)
			if di != dj {
				return di < dj
			}
			if usable[i].RatedPowerKW != usable[j].RatedPowerKW {
				return usable[i].RatedPowerKW > usable[j].RatedPowerKW
			}
			if usable[i].PricePerKWh != usable[j].PricePerKWh {
				return usable[i].PricePerKWh < usable[j].PricePerKWh
			}
			return usable[i].ID < usable[j].ID
		})

		for _, st := range usable {
			detourM := geo.HaversineM(point, st.Pos)
			detourEnergy := p.energy.ForDistance(detourM, detourClass, profile)
			arrival := v.kwh - detourEnergy
			if arrival < reserve {
				continue
			}

			// Charge to cover the rest of the trip, the return leg and the
			// reserve; capped by capacity. Never "charge to 100%" when less
			// will do: overcharging wastes dwell against the time objective.
			target := remaining[v.node] + detourEnergy + reserve
			if target > profile.BatteryCapacityKWh {
				target = profile.BatteryCapacityKWh
			}
			if target <= arrival {
				target = arrival
			}
			dwell, gained := p.energy.DwellFor(st, arrival, target-arrival, profile)
			if gained <= 0 {
				continue
			}

			detourTime := time.Duration(detourM / (detourClass.SpeedKmh() / 3.6) * float64(time.Second))
			stop := model.ChargeStop{
				Station:       st,
				SegmentIndex:  v.node,
				ArrivalKWh:    arrival,
				DepartureKWh:  arrival + gained,
				DetourM:       detourM,
				Dwell:         dwell,
				ArrivalOffset: v.elapsed + detourTime,
				Fallback:      fallback,
			}
			resume := resumeState{
				kwh:          stop.DepartureKWh - detourEnergy,
				elapsed:      stop.ArrivalOffset + dwell + detourTime,
				driveTime:    v.driveTime,
				energyKWh:    v.energyKWh,
				detourEnergy: 2 * detourEnergy,
				detourTravel: 2 * detourTime,
			}
			return stop, resume, true
		}
	}
	return model.ChargeStop{}, resumeState{}, false
}

// betterFallback prefers the occupied station closest to the insertion
// point, then the more powerful one.
func betterFallback(a, b model.ChargingStation, point model.LatLng) bool {
	da := geo.HaversineM(point, a.Pos)
	db := geo.HaversineM(point, b.Pos)
	if da != db {
		return da < db
	}
	return a.RatedPowerKW > b.RatedPowerKW
}
