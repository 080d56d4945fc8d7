package graph

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/voltroute/planner/core/geo"
	"github.com/voltroute/planner/core/model"
)

type nodeRecord struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ElevationM float64 `json:"elevation_m,omitempty"`
}

type edgeRecord struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	DistanceM float64 `json:"distance_m,omitempty"`
	Class     string  `json:"class,omitempty"`
	OneWay    bool    `json:"one_way,omitempty"`
}

type graphFile struct {
	Meta  map[string]any `json:"meta,omitempty"`
	Nodes []nodeRecord   `json:"nodes"`
	Edges []edgeRecord   `json:"edges"`
}

// LoadFile reads a road graph from a JSON file. Missing edge distances are
// computed with the haversine formula, elevation deltas are derived from the
// node elevations, and two-way edges are expanded into both directions.
func LoadFile(path string) (*Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	return Load(raw)
}

// Load parses a road graph from raw JSON.
func Load(raw []byte) (*Graph, error) {
	var data graphFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse graph file: %w", err)
	}

	g := New()
	elevation := make([]float64, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		if _, dup := g.NodeByID(n.ID); dup {
			return nil, fmt.Errorf("duplicate waypoint id %q", n.ID)
		}
		g.AddWaypoint(model.Waypoint{
			ID:   n.ID,
			Name: n.Name,
			Pos:  model.LatLng{Lat: n.Lat, Lng: n.Lng},
		})
		elevation = append(elevation, n.ElevationM)
	}

	for _, e := range data.Edges {
		from, ok := g.NodeByID(e.From)
		if !ok {
			return nil, fmt.Errorf("edge references unknown waypoint %q", e.From)
		}
		to, ok := g.NodeByID(e.To)
		if !ok {
			return nil, fmt.Errorf("edge references unknown waypoint %q", e.To)
		}
		dist := e.DistanceM
		if dist <= 0 {
			dist = geo.HaversineM(g.Waypoint(from).Pos, g.Waypoint(to).Pos)
		}
		class := model.ParseRoadClass(e.Class)
		delta := elevation[to] - elevation[from]
		g.AddSegment(model.RoadSegment{
			From:            from,
			To:              to,
			DistanceM:       dist,
			ElevationDeltaM: delta,
			Class:           class,
		})
		if !e.OneWay {
			g.AddSegment(model.RoadSegment{
				From:            to,
				To:              from,
				DistanceM:       dist,
				ElevationDeltaM: -delta,
				Class:           class,
			})
		}
	}
	return g, nil
}
