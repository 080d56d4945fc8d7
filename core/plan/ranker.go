package plan

import (
	"sort"

	"github.com/voltroute/planner/core/model"
)

// Rank orders augmented routes: feasible before infeasible, then ascending
// total time, then fewer stops, then lower charge cost. The sort is stable
// so equal routes keep their candidate order. The first entry is marked
// recommended. Pure function: the input slice is not modified.
func Rank(routes []model.AugmentedRoute) []model.AugmentedRoute {
	out := make([]model.AugmentedRoute, len(routes))
	copy(out, routes)
	for i := range out {
		out[i].Recommended = false
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Feasible != b.Feasible {
			return a.Feasible
		}
		if a.TotalTime != b.TotalTime {
			return a.TotalTime < b.TotalTime
		}
		if len(a.Stops) != len(b.Stops) {
			return len(a.Stops) < len(b.Stops)
		}
		return a.ChargeCost < b.ChargeCost
	})

	if len(out) > 0 && out[0].Feasible {
		out[0].Recommended = true
	}
	return out
}
