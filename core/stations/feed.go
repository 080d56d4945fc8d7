package stations

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/voltroute/planner/core/model"
)

// Feed is a source of station records. Implementations include the static
// file feed below, the in-memory registry, and the MQTT availability feed in
// infra/stationfeed.
type Feed interface {
	Fetch(ctx context.Context) ([]model.ChargingStation, error)
}

// StaticFeed reads station records from a JSON file. Used for bootstrap and
// in deployments without a live availability feed.
type StaticFeed struct {
	Path string
}

// Fetch implements Feed.
func (f StaticFeed) Fetch(_ context.Context) ([]model.ChargingStation, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read station file: %w", err)
	}
	var records []model.ChargingStation
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse station file: %w", err)
	}
	return records, nil
}

// Registry is an additive in-memory feed backing operator-submitted
// stations. Registered stations appear in the snapshot produced by the next
// refresh, not immediately.
type Registry struct {
	mu       sync.RWMutex
	stations map[string]model.ChargingStation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stations: make(map[string]model.ChargingStation)}
}

// Register adds or replaces a station record.
func (r *Registry) Register(st model.ChargingStation) error {
	if st.ID == "" {
		return fmt.Errorf("station id is required")
	}
	if st.RatedPowerKW <= 0 {
		return fmt.Errorf("station %s: rated power must be positive", st.ID)
	}
	r.mu.Lock()
	r.stations[st.ID] = st
	r.mu.Unlock()
	return nil
}

// Fetch implements Feed, returning records in a stable order.
func (r *Registry) Fetch(_ context.Context) ([]model.ChargingStation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ChargingStation, 0, len(r.stations))
	for _, st := range r.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MultiFeed merges several feeds into one. Records from later feeds override
// earlier ones with the same id, so a live availability feed can refine the
// static catalogue.
type MultiFeed []Feed

// Fetch implements Feed.
func (m MultiFeed) Fetch(ctx context.Context) ([]model.ChargingStation, error) {
	merged := make(map[string]model.ChargingStation)
	order := make([]string, 0)
	for _, f := range m {
		records, err := f.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		for _, st := range records {
			if _, seen := merged[st.ID]; !seen {
				order = append(order, st.ID)
			}
			merged[st.ID] = st
		}
	}
	out := make([]model.ChargingStation, 0, len(merged))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return out, nil
}
