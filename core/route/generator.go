package route

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"sort"

	"github.com/voltroute/planner/core/energy"
	"github.com/voltroute/planner/core/geo"
	"github.com/voltroute/planner/core/graph"
	"github.com/voltroute/planner/core/model"
)

// ErrNoPathFound is returned when source and destination are disconnected.
var ErrNoPathFound = errors.New("no path found")

// maxSpeedMS is the fastest class speed in m/s, used by the A* heuristic so
// it never overestimates remaining travel time.
var maxSpeedMS = model.RoadMotorway.SpeedKmh() / 3.6

// cancelCheckInterval is how many queue pops pass between context checks.
const cancelCheckInterval = 256

// Generator produces up to K alternative route candidates between two graph
// nodes. Alternatives are found by penalizing the edges of already accepted
// paths and re-running the search. Pure query, safe for concurrent use.
type Generator struct {
	graph  graph.Provider
	energy energy.Model

	// PenaltyFactor multiplies the cost of edges already used by an
	// accepted path. Values near 1 yield near-duplicate routes, large
	// values force detours; 1.4 is a reasonable middle ground.
	PenaltyFactor float64
	// MaxAttempts bounds the number of penalized re-runs per request.
	MaxAttempts int
}

// NewGenerator returns a generator with default alternative-search settings.
func NewGenerator(g graph.Provider, em energy.Model) *Generator {
	return &Generator{graph: g, energy: em, PenaltyFactor: 1.4, MaxAttempts: 8}
}

// FindCandidates returns up to k distinct candidates from src to dst ordered
// by increasing base distance. The vehicle profile is only used to derive
// each candidate's base energy cost.
func (g *Generator) FindCandidates(ctx context.Context, src, dst int32, k int, profile model.VehicleProfile) ([]model.RouteCandidate, error) {
	if k <= 0 {
		k = 1
	}
	if src == dst {
		// Zero-length trip: a single empty candidate anchored at the node.
		pos := g.graph.Waypoint(src).Pos
		return []model.RouteCandidate{{Points: []model.LatLng{pos}}}, nil
	}

	penalties := make(map[int32]float64)
	seen := make(map[string]bool)
	var out []model.RouteCandidate

	attempts := g.MaxAttempts
	if attempts < k {
		attempts = k
	}
	for attempt := 0; attempt < attempts && len(out) < k; attempt++ {
		edges, err := g.search(ctx, src, dst, penalties)
		if err != nil {
			if errors.Is(err, ErrNoPathFound) && len(out) > 0 {
				break
			}
			return nil, err
		}
		sig := pathSignature(edges)
		for _, e := range edges {
			if penalties[e] == 0 {
				penalties[e] = 1
			}
			penalties[e] *= g.PenaltyFactor
		}
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, g.buildCandidate(edges, profile))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out, nil
}

// pqItem is one frontier entry; the priority queue orders by estimated total
// cost f = g + h.
type pqItem struct {
	node  int32
	gCost float64
	fCost float64
	index int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].fCost < pq[j].fCost }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x interface{}) {
	it := x.(*pqItem)
	it.index = len(*pq)
	*pq = append(*pq, it)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return it
}

// search runs A* from src to dst with per-edge cost penalties and returns
// the edge indices of the best path.
func (g *Generator) search(ctx context.Context, src, dst int32, penalties map[int32]float64) ([]int32, error) {
	n := g.graph.NodeCount()
	gCost := make([]float64, n)
	prevEdge := make([]int32, n)
	closed := make([]bool, n)
	for i := range gCost {
		gCost[i] = math.Inf(1)
		prevEdge[i] = -1
	}
	gCost[src] = 0

	dstPos := g.graph.Waypoint(dst).Pos
	h := func(node int32) float64 {
		return geo.HaversineM(g.graph.Waypoint(node).Pos, dstPos) / maxSpeedMS
	}

	pq := priorityQueue{}
	heap.Init(&pq)
	heap.Push(&pq, &pqItem{node: src, gCost: 0, fCost: h(src)})

	pops := 0
	for pq.Len() > 0 {
		pops++
		if pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cur := heap.Pop(&pq).(*pqItem)
		if closed[cur.node] {
			continue
		}
		closed[cur.node] = true
		if cur.node == dst {
			break
		}
		for _, e := range g.graph.Neighbors(cur.node) {
			seg := g.graph.Segment(e)
			cost := seg.TravelTimeSeconds()
			if p, ok := penalties[e]; ok {
				cost *= p
			}
			next := cur.gCost + cost
			if next < gCost[seg.To] {
				gCost[seg.To] = next
				prevEdge[seg.To] = e
				heap.Push(&pq, &pqItem{node: seg.To, gCost: next, fCost: next + h(seg.To)})
			}
		}
	}

	if math.IsInf(gCost[dst], 1) {
		return nil, ErrNoPathFound
	}

	var edges []int32
	for at := dst; at != src; {
		e := prevEdge[at]
		edges = append(edges, e)
		at = g.graph.Segment(e).From
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return edges, nil
}

func (g *Generator) buildCandidate(edges []int32, profile model.VehicleProfile) model.RouteCandidate {
	c := model.RouteCandidate{
		Segments: make([]model.RoadSegment, 0, len(edges)),
		Points:   make([]model.LatLng, 0, len(edges)+1),
	}
	for i, e := range edges {
		seg := g.graph.Segment(e)
		if i == 0 {
			c.Points = append(c.Points, g.graph.Waypoint(seg.From).Pos)
		}
		c.Points = append(c.Points, g.graph.Waypoint(seg.To).Pos)
		c.Segments = append(c.Segments, seg)
		c.DistanceM += seg.DistanceM
		c.BaseEnergyKWh += g.energy.ForSegment(seg, profile)
	}
	return c
}

func pathSignature(edges []int32) string {
	sig := make([]byte, 0, len(edges)*4)
	for _, e := range edges {
		sig = append(sig, byte(e), byte(e>>8), byte(e>>16), byte(e>>24))
	}
	return string(sig)
}
