package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/poller"
)

// BoardHandler serves the floor-plan view and the manual refresh
// operations.
type BoardHandler struct {
	State  *floorplan.State
	Poller *poller.Poller
}

func NewBoardHandler(state *floorplan.State, p *poller.Poller) *BoardHandler {
	return &BoardHandler{State: state, Poller: p}
}

// FloorPlan returns the current board: every table with its committed
// reservations, plus the active assignment policy.
func (h *BoardHandler) FloorPlan(c echo.Context) error {
	policy := h.State.Policy()
	return c.JSON(http.StatusOK, echo.Map{
		"tables": h.State.Snapshot(),
		"policy": echo.Map{
			"strictSequentialBooking": policy.StrictSequentialBooking,
			"allowOverCapacity":       policy.AllowOverCapacity,
		},
	})
}

// Refresh reloads the board from the record store and sweeps duplicate
// provider reservations that survived earlier sessions.
func (h *BoardHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.Poller.RefreshFromStore(ctx); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
	}
	removed := h.Poller.SweepDuplicates(ctx)
	return c.JSON(http.StatusOK, echo.Map{
		"tables":            h.State.Snapshot(),
		"duplicatesRemoved": removed,
	})
}
