package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/voltroute/planner/core/energy"
	"github.com/voltroute/planner/core/graph"
	"github.com/voltroute/planner/core/model"
	"github.com/voltroute/planner/core/route"
)

// lineGraph builds a 145 km west-to-east road of 5 km primary segments,
// plus a disconnected island node.
func lineGraph(t *testing.T) *graph.Graph {
	t.Helper()
	var b strings.Builder
	b.WriteString(`{"nodes":[`)
	for i := 0; i <= 29; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":"n%d","lat":48.0,"lng":%f}`, i, 2.0+float64(i)*5*lngPerKm)
	}
	b.WriteString(`,{"id":"island","lat":50.0,"lng":10.0}`)
	b.WriteString(`],"edges":[`)
	for i := 0; i < 29; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"from":"n%d","to":"n%d","distance_m":5000,"class":"primary"}`, i, i+1)
	}
	b.WriteString(`]}`)

	g, err := graph.Load([]byte(b.String()))
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	return g
}

func newTestService(t *testing.T, g *graph.Graph, sts ...model.ChargingStation) *Service {
	t.Helper()
	em := energy.NewModel()
	gen := route.NewGenerator(g, em)
	planner := NewPlanner(em, indexWith(sts...), Config{ReserveFloorPct: 0.05, CorridorRadiusM: 6000})
	return NewService(g, gen, planner, ServiceConfig{DefaultK: 2, MaxK: 3, TimeoutMS: 5000}, nil, nil)
}

func stationAtKm(km float64) model.ChargingStation {
	return model.ChargingStation{
		ID:           fmt.Sprintf("st-%.0f", km),
		Pos:          model.LatLng{Lat: 48.0, Lng: 2.0 + km*lngPerKm},
		Connector:    model.ConnectorCCS,
		RatedPowerKW: 150,
		Availability: model.StationAvailable,
		PricePerKWh:  0.40,
	}
}

func TestPlanRoute_EndToEnd(t *testing.T) {
	g := lineGraph(t)
	svc := newTestService(t, g, stationAtKm(50))

	res, err := svc.PlanRoute(context.Background(), Request{
		Source:      model.LatLng{Lat: 48.0, Lng: 2.0},
		Destination: model.LatLng{Lat: 48.0, Lng: 2.0 + 145*lngPerKm},
		Profile:     testProfile(),
		StartSoC:    0.30,
	})
	if err != nil {
		t.Fatalf("plan route: %v", err)
	}
	if res.PlanID == "" {
		t.Fatal("plan id missing")
	}
	if res.RecommendedIndex != 0 {
		t.Fatalf("recommended index = %d, want 0", res.RecommendedIndex)
	}
	rec := res.Routes[res.RecommendedIndex]
	if !rec.Feasible || len(rec.Stops) != 1 {
		t.Fatalf("expected one feasible stop-augmented route, got %+v", rec)
	}
	if !rec.Recommended {
		t.Fatal("recommended flag not set on top route")
	}
}

func TestPlanRoute_InvalidProfileRejected(t *testing.T) {
	svc := newTestService(t, lineGraph(t))
	_, err := svc.PlanRoute(context.Background(), Request{Profile: model.VehicleProfile{}})
	if !errors.Is(err, model.ErrInvalidProfile) {
		t.Fatalf("expected profile validation error, got %v", err)
	}
}

func TestPlanRoute_InvalidSoCRejected(t *testing.T) {
	svc := newTestService(t, lineGraph(t))
	_, err := svc.PlanRoute(context.Background(), Request{Profile: testProfile(), StartSoC: 1.5})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request error, got %v", err)
	}
}

func TestPlanRoute_Disconnected(t *testing.T) {
	svc := newTestService(t, lineGraph(t))
	_, err := svc.PlanRoute(context.Background(), Request{
		Source:      model.LatLng{Lat: 48.0, Lng: 2.0},
		Destination: model.LatLng{Lat: 50.0, Lng: 10.0},
		Profile:     testProfile(),
		StartSoC:    0.9,
	})
	if !errors.Is(err, route.ErrNoPathFound) {
		t.Fatalf("expected ErrNoPathFound, got %v", err)
	}
}

func TestPlanRoute_InfeasibleStillReturned(t *testing.T) {
	// No stations at all: the long trip cannot work, but routes come back
	// marked rather than being dropped.
	svc := newTestService(t, lineGraph(t))
	res, err := svc.PlanRoute(context.Background(), Request{
		Source:      model.LatLng{Lat: 48.0, Lng: 2.0},
		Destination: model.LatLng{Lat: 48.0, Lng: 2.0 + 145*lngPerKm},
		Profile:     testProfile(),
		StartSoC:    0.30,
	})
	if err != nil {
		t.Fatalf("plan route: %v", err)
	}
	if len(res.Routes) == 0 {
		t.Fatal("infeasible routes must still be returned")
	}
	if res.RecommendedIndex != -1 {
		t.Fatalf("no feasible route should be recommended, got index %d", res.RecommendedIndex)
	}
	for _, r := range res.Routes {
		if r.Feasible {
			t.Fatal("route should be infeasible without stations")
		}
	}
}

// blockedFinder never returns before its context expires.
type blockedFinder struct{}

func (blockedFinder) FindCandidates(ctx context.Context, _, _ int32, _ int, _ model.VehicleProfile) ([]model.RouteCandidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPlanRoute_Timeout(t *testing.T) {
	g := lineGraph(t)
	planner := NewPlanner(energy.NewModel(), indexWith(), Config{})
	svc := NewService(g, blockedFinder{}, planner, ServiceConfig{TimeoutMS: 20}, nil, nil)

	_, err := svc.PlanRoute(context.Background(), Request{
		Source:      model.LatLng{Lat: 48.0, Lng: 2.0},
		Destination: model.LatLng{Lat: 48.0, Lng: 2.1},
		Profile:     testProfile(),
		StartSoC:    0.5,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestReplan_ReturnsRecommendedRoute(t *testing.T) {
	g := lineGraph(t)
	svc := newTestService(t, g, stationAtKm(50))

	r, err := svc.Replan(context.Background(),
		model.LatLng{Lat: 48.0, Lng: 2.0}, 0.30,
		model.LatLng{Lat: 48.0, Lng: 2.0 + 145*lngPerKm}, testProfile())
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	if !r.Feasible {
		t.Fatal("replan must return a feasible route")
	}
}

func TestReplan_NoFeasible(t *testing.T) {
	svc := newTestService(t, lineGraph(t))
	_, err := svc.Replan(context.Background(),
		model.LatLng{Lat: 48.0, Lng: 2.0}, 0.30,
		model.LatLng{Lat: 48.0, Lng: 2.0 + 145*lngPerKm}, testProfile())
	if !errors.Is(err, ErrNoFeasibleRoute) {
		t.Fatalf("expected ErrNoFeasibleRoute, got %v", err)
	}
}
