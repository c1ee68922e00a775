package floorplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-plan-reservations/internal/config"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

func tbl(id string, capacity int, typ model.TableType) *model.Table {
	return &model.Table{ID: id, Capacity: capacity, Type: typ}
}

func TestSelectTablePriorityWins(t *testing.T) {
	sel := NewSelector(config.DefaultFloorPlan())

	// C5 is the preferred two-top regardless of the order the available
	// set arrives in.
	c5 := tbl("C5", 2, model.TableTypeStandard)
	b1 := tbl("B1", 4, model.TableTypeStandard)

	got, ok := sel.SelectTable(2, []*model.Table{b1, c5})
	require.True(t, ok)
	assert.Equal(t, "C5", got.ID)

	got, ok = sel.SelectTable(2, []*model.Table{c5, b1})
	require.True(t, ok)
	assert.Equal(t, "C5", got.ID)
}

func TestSelectTablePriorityOrder(t *testing.T) {
	sel := NewSelector(config.DefaultFloorPlan())

	// For four guests the list is C3, B2, B1; with C3 taken, B2 wins.
	b1 := tbl("B1", 4, model.TableTypeStandard)
	b2 := tbl("B2", 4, model.TableTypeStandard)

	got, ok := sel.SelectTable(4, []*model.Table{b1, b2})
	require.True(t, ok)
	assert.Equal(t, "B2", got.ID)
}

func TestSelectTableLargeParty(t *testing.T) {
	sel := NewSelector(config.DefaultFloorPlan())

	d3 := tbl("D3", 6, model.TableTypeStandard)
	e1 := tbl("E1", 6, model.TableTypeOutdoor)

	// Parties of seven or more use the large-party list (D1, D3, E1, E2).
	got, ok := sel.SelectTable(8, []*model.Table{e1, d3})
	require.True(t, ok)
	assert.Equal(t, "D3", got.ID)
}

func TestSelectTableFallbackOrdering(t *testing.T) {
	// Empty priority lists force the fallback sort.
	sel := NewSelector(config.FloorPlan{LargeParty: 7})

	d1 := tbl("D1", 6, model.TableTypeStandard)
	e1 := tbl("E1", 6, model.TableTypeOutdoor)
	b4 := tbl("B4", 2, model.TableTypeStandard)

	// Smallest capacity first.
	got, ok := sel.SelectTable(2, []*model.Table{d1, e1, b4})
	require.True(t, ok)
	assert.Equal(t, "B4", got.ID)

	// At equal capacity, indoor beats outdoor.
	got, ok = sel.SelectTable(5, []*model.Table{e1, d1})
	require.True(t, ok)
	assert.Equal(t, "D1", got.ID)

	// Remaining ties break by id so repeated runs are deterministic.
	d3 := tbl("D3", 6, model.TableTypeStandard)
	got, ok = sel.SelectTable(5, []*model.Table{d3, d1})
	require.True(t, ok)
	assert.Equal(t, "D1", got.ID)
}

func TestSelectTableNoneAvailable(t *testing.T) {
	sel := NewSelector(config.DefaultFloorPlan())

	_, ok := sel.SelectTable(7, nil)
	assert.False(t, ok)

	_, ok = sel.SelectTable(2, []*model.Table{})
	assert.False(t, ok)
}
