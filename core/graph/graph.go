package graph

import (
	"github.com/voltroute/planner/core/geo"
	"github.com/voltroute/planner/core/model"
)

// Provider is the query interface the planner consumes. The road graph is an
// external collaborator; the in-memory Graph below is the bundled
// implementation used by the service and by tests.
type Provider interface {
	// NodeCount returns the number of waypoints in the graph.
	NodeCount() int
	// Waypoint returns the waypoint at index i.
	Waypoint(i int32) model.Waypoint
	// Neighbors returns the indices of the edges leaving node i.
	Neighbors(i int32) []int32
	// Segment returns the edge at index e.
	Segment(e int32) model.RoadSegment
	// NearestNode returns the index of the waypoint closest to p, or -1 when
	// the graph is empty.
	NearestNode(p model.LatLng) int32
}

// Graph holds the road network as an arena: waypoints and segments stored in
// flat slices referenced by index, with adjacency lists of edge indices.
// Cycles in the network are just indices, never pointer loops. A Graph is
// immutable after construction and safe for concurrent readers.
type Graph struct {
	nodes []model.Waypoint
	edges []model.RoadSegment
	adj   [][]int32

	index map[string]int32
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int32)}
}

// AddWaypoint appends a waypoint and returns its index.
func (g *Graph) AddWaypoint(w model.Waypoint) int32 {
	i := int32(len(g.nodes))
	g.nodes = append(g.nodes, w)
	g.adj = append(g.adj, nil)
	g.index[w.ID] = i
	return i
}

// AddSegment appends a directed edge and returns its index.
func (g *Graph) AddSegment(s model.RoadSegment) int32 {
	e := int32(len(g.edges))
	g.edges = append(g.edges, s)
	g.adj[s.From] = append(g.adj[s.From], e)
	return e
}

// NodeCount implements Provider.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// SegmentCount returns the number of road segments in the graph.
func (g *Graph) SegmentCount() int { return len(g.edges) }

// Waypoint implements Provider.
func (g *Graph) Waypoint(i int32) model.Waypoint { return g.nodes[i] }

// Neighbors implements Provider.
func (g *Graph) Neighbors(i int32) []int32 { return g.adj[i] }

// Segment implements Provider.
func (g *Graph) Segment(e int32) model.RoadSegment { return g.edges[e] }

// NodeByID returns the index of the waypoint with the given identifier.
func (g *Graph) NodeByID(id string) (int32, bool) {
	i, ok := g.index[id]
	return i, ok
}

// NearestNode implements Provider with a linear scan. Graph sizes the service
// loads keep this well under a millisecond; a spatial index would only pay
// off for continent-scale data.
func (g *Graph) NearestNode(p model.LatLng) int32 {
	best := int32(-1)
	bestDist := -1.0
	for i := range g.nodes {
		d := geo.HaversineM(p, g.nodes[i].Pos)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = int32(i)
		}
	}
	return best
}
