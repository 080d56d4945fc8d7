package stations

import (
	"time"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/voltroute/planner/core/geo"
	"github.com/voltroute/planner/core/model"
)

// stationPoint is a station position projected into the snapshot plane,
// carrying the index of the station record it belongs to.
type stationPoint struct {
	kdtree.Point
	idx int
}

// Compare satisfies kdtree.Comparable. The promoted Point methods assert
// their argument to kdtree.Point, so the wrapper has to unwrap its own type.
func (p stationPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(stationPoint)
	return p.Point[d] - q.Point[d]
}

// Distance satisfies kdtree.Comparable, returning squared Euclidean
// distance like kdtree.Point does.
func (p stationPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(stationPoint)
	return p.Point.Distance(q.Point)
}

type stationPoints []stationPoint

func (p stationPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p stationPoints) Len() int                      { return len(p) }
func (p stationPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}
func (p stationPoints) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, stationPoints: p}.Pivot()
}

// plane sorts stationPoints along one dimension for tree construction.
type plane struct {
	kdtree.Dim
	stationPoints
}

func (p plane) Less(i, j int) bool {
	return p.stationPoints[i].Point[p.Dim] < p.stationPoints[j].Point[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.stationPoints = p.stationPoints[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.stationPoints[i], p.stationPoints[j] = p.stationPoints[j], p.stationPoints[i]
}

// Snapshot is an immutable view of the station fleet at one refresh. Queries
// run against a kd-tree over positions projected into a local plane.
// Snapshots are never mutated after construction, so any number of readers
// can share one without locking.
type Snapshot struct {
	stations []model.ChargingStation
	byID     map[string]int
	tree     *kdtree.Tree
	proj     geo.Projection
	takenAt  time.Time
}

// BuildSnapshot indexes the given station records. The slice is copied; the
// caller keeps ownership of its argument.
func BuildSnapshot(records []model.ChargingStation) *Snapshot {
	s := &Snapshot{
		stations: append([]model.ChargingStation(nil), records...),
		byID:     make(map[string]int, len(records)),
		takenAt:  time.Now(),
	}
	if len(s.stations) == 0 {
		return s
	}

	// Center the projection on the fleet centroid to keep planar error low.
	var c model.LatLng
	for _, st := range s.stations {
		c.Lat += st.Pos.Lat
		c.Lng += st.Pos.Lng
	}
	c.Lat /= float64(len(s.stations))
	c.Lng /= float64(len(s.stations))
	s.proj = geo.NewProjection(c)

	pts := make(stationPoints, len(s.stations))
	for i, st := range s.stations {
		s.byID[st.ID] = i
		xy := s.proj.ToXY(st.Pos)
		pts[i] = stationPoint{Point: kdtree.Point{xy.X, xy.Y}, idx: i}
	}
	s.tree = kdtree.New(pts, false)
	return s
}

// TakenAt returns the snapshot build time.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Len returns the number of stations in the snapshot.
func (s *Snapshot) Len() int { return len(s.stations) }

// Station returns the record with the given id.
func (s *Snapshot) Station(id string) (model.ChargingStation, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.ChargingStation{}, false
	}
	return s.stations[i], true
}

// Near returns the stations within radiusM of p, optionally filtered by
// connector type (empty means any). Availability is not filtered here: the
// planner needs occupied stations as fallback candidates.
func (s *Snapshot) Near(p model.LatLng, radiusM float64, ct model.ConnectorType) []model.ChargingStation {
	if s.tree == nil {
		return nil
	}
	xy := s.proj.ToXY(p)
	q := stationPoint{Point: kdtree.Point{xy.X, xy.Y}}

	// Point distances are squared Euclidean, so the keeper bound is r².
	keeper := kdtree.NewDistKeeper(radiusM * radiusM)
	s.tree.NearestSet(keeper, q)

	var out []model.ChargingStation
	for _, c := range keeper.Heap {
		pt, ok := c.Comparable.(stationPoint)
		if !ok {
			continue
		}
		st := s.stations[pt.idx]
		if ct != "" && st.Connector != ct {
			continue
		}
		out = append(out, st)
	}
	return out
}
