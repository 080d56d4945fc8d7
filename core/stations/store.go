package stations

import (
	"sync/atomic"

	"github.com/voltroute/planner/core/model"
)

// Index is the query interface the planner consumes. A query always reflects
// the most recent completed refresh, never a partial one.
type Index interface {
	StationsNear(p model.LatLng, radiusM float64, ct model.ConnectorType) []model.ChargingStation
	Station(id string) (model.ChargingStation, bool)
}

// Store holds the current snapshot behind an atomic pointer. The refresher
// is the single writer; readers never block it and never observe a torn
// snapshot.
type Store struct {
	snap atomic.Pointer[Snapshot]
}

// NewStore returns a store primed with an empty snapshot so queries are
// valid before the first refresh completes.
func NewStore() *Store {
	s := &Store{}
	s.snap.Store(BuildSnapshot(nil))
	return s
}

// Swap atomically replaces the current snapshot.
func (s *Store) Swap(next *Snapshot) { s.snap.Store(next) }

// Current returns the active snapshot.
func (s *Store) Current() *Snapshot { return s.snap.Load() }

// StationsNear implements Index against the current snapshot.
func (s *Store) StationsNear(p model.LatLng, radiusM float64, ct model.ConnectorType) []model.ChargingStation {
	return s.Current().Near(p, radiusM, ct)
}

// Station implements Index against the current snapshot.
func (s *Store) Station(id string) (model.ChargingStation, bool) {
	return s.Current().Station(id)
}
