package config

// The floor-plan layout and the table-priority policy are data, not code:
// both change whenever the restaurant rearranges the floor.  They can be
// supplied as a JSON file (FLOOR_PLAN_FILE); without one the compiled-in
// layout below is used.

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

// FloorPlan describes the static table set and the assignment policy.
//
// Fields:
//  Tables   – the physical tables, keyed by their short codes.
//  Priority – ordered preferred-table lists per exact pax count.
//  PriorityLarge – preferred list for parties of LargeParty or more.
//  LargeParty – pax count at which PriorityLarge applies (default 7).
type FloorPlan struct {
	Tables        []TableDef          `json:"tables"`
	Priority      map[string][]string `json:"priority"`
	PriorityLarge []string            `json:"priorityLarge"`
	LargeParty    int                 `json:"largeParty"`
}

// TableDef is one table entry in the layout file.
type TableDef struct {
	ID       string          `json:"id"`
	Capacity int             `json:"capacity"`
	Type     model.TableType `json:"type"`
}

// LoadFloorPlan reads the layout from path, or returns the default layout
// when path is empty.  A malformed file is an error rather than a silent
// fallback so a typo in the layout never shrinks the restaurant.
func LoadFloorPlan(path string) (FloorPlan, error) {
	if path == "" {
		return DefaultFloorPlan(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return FloorPlan{}, fmt.Errorf("read floor plan: %w", err)
	}
	var fp FloorPlan
	if err := json.Unmarshal(raw, &fp); err != nil {
		return FloorPlan{}, fmt.Errorf("parse floor plan: %w", err)
	}
	if len(fp.Tables) == 0 {
		return FloorPlan{}, fmt.Errorf("floor plan %s defines no tables", path)
	}
	if fp.LargeParty == 0 {
		fp.LargeParty = 7
	}
	return fp, nil
}

// DefaultFloorPlan returns the current restaurant layout: seven bar seats
// (section A), two- and four-top dining tables (B and C), six-seaters
// (D) and two outdoor six-seaters (E).
func DefaultFloorPlan() FloorPlan {
	return FloorPlan{
		Tables: []TableDef{
			{ID: "A1", Capacity: 1, Type: model.TableTypeBar},
			{ID: "A2", Capacity: 1, Type: model.TableTypeBar},
			{ID: "A3", Capacity: 1, Type: model.TableTypeBar},
			{ID: "A4", Capacity: 1, Type: model.TableTypeBar},
			{ID: "A5", Capacity: 1, Type: model.TableTypeBar},
			{ID: "A6", Capacity: 1, Type: model.TableTypeBar},
			{ID: "A7", Capacity: 1, Type: model.TableTypeBar},
			{ID: "B1", Capacity: 4, Type: model.TableTypeStandard},
			{ID: "B2", Capacity: 4, Type: model.TableTypeStandard},
			{ID: "B3", Capacity: 4, Type: model.TableTypeStandard},
			{ID: "B4", Capacity: 2, Type: model.TableTypeStandard},
			{ID: "B5", Capacity: 2, Type: model.TableTypeStandard},
			{ID: "B6", Capacity: 2, Type: model.TableTypeStandard},
			{ID: "C1", Capacity: 4, Type: model.TableTypeStandard},
			{ID: "C2", Capacity: 2, Type: model.TableTypeStandard},
			{ID: "C3", Capacity: 4, Type: model.TableTypeStandard},
			{ID: "C4", Capacity: 2, Type: model.TableTypeStandard},
			{ID: "C5", Capacity: 2, Type: model.TableTypeStandard},
			{ID: "D1", Capacity: 6, Type: model.TableTypeStandard},
			{ID: "D2", Capacity: 6, Type: model.TableTypeStandard},
			{ID: "D3", Capacity: 6, Type: model.TableTypeStandard},
			{ID: "E1", Capacity: 6, Type: model.TableTypeOutdoor},
			{ID: "E2", Capacity: 6, Type: model.TableTypeOutdoor},
		},
		Priority: map[string][]string{
			"1": {"C5"},
			"2": {"C5"},
			"3": {"C3", "B2", "B1"},
			"4": {"C3", "B2", "B1"},
			"5": {"D2"},
			"6": {"D2"},
		},
		PriorityLarge: []string{"D1", "D3", "E1", "E2"},
		LargeParty:    7,
	}
}

// PriorityFor returns the ordered preferred-table list for a party size.
// Sizes at or above LargeParty use the large-party list; unknown sizes
// below it have no preference and go straight to the fallback sort.
func (fp FloorPlan) PriorityFor(pax int) []string {
	if pax >= fp.LargeParty {
		return fp.PriorityLarge
	}
	return fp.Priority[fmt.Sprintf("%d", pax)]
}
