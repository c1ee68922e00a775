package floorplan

import (
	"sort"

	"github.com/iliyamo/floor-plan-reservations/internal/config"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

// Selector picks the best table for a party size from a pre-filtered set
// of available tables.  The priority lists come from the floor-plan
// configuration; the selector itself is pure and deterministic.
type Selector struct {
	plan config.FloorPlan
}

// NewSelector returns a Selector over the given floor plan.
func NewSelector(plan config.FloorPlan) *Selector {
	return &Selector{plan: plan}
}

// SelectTable returns the preferred table for pax guests, or false when
// no table is available.  The priority list for the exact party size is
// walked in order and the first available entry wins.  When none of the
// preferred tables are free, the fallback picks the smallest available
// table, preferring indoor over outdoor at equal capacity and breaking
// remaining ties by id so repeated runs pick the same table.
func (s *Selector) SelectTable(pax int, available []*model.Table) (*model.Table, bool) {
	if len(available) == 0 {
		return nil, false
	}
	for _, id := range s.plan.PriorityFor(pax) {
		for _, t := range available {
			if t.ID == id {
				return t, true
			}
		}
	}
	sorted := append([]*model.Table(nil), available...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Capacity != b.Capacity {
			return a.Capacity < b.Capacity
		}
		if a.IsOutdoor() != b.IsOutdoor() {
			return !a.IsOutdoor()
		}
		return a.ID < b.ID
	})
	return sorted[0], true
}
