package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/floor-plan-reservations/internal/poller"
)

// PollHandler exposes manual triggers for the sync cycles.  The timers
// keep the board current on their own; these endpoints exist so staff can
// force a sweep right after taking a booking over the phone with the
// customer still on the line.
type PollHandler struct {
	Poller *poller.Poller
}

func NewPollHandler(p *poller.Poller) *PollHandler {
	return &PollHandler{Poller: p}
}

// Today triggers a today-bookings sweep and returns the batch outcome.
func (h *PollHandler) Today(c echo.Context) error {
	result, err := h.Poller.RunTodayCycle(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// Future triggers an upcoming-bookings sweep.
func (h *PollHandler) Future(c echo.Context) error {
	result, err := h.Poller.RunFutureCycle(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// Cancelled triggers a cancelled-booking reconciliation.
func (h *PollHandler) Cancelled(c echo.Context) error {
	reconciled, err := h.Poller.RunCancelledCycle(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"reconciled": reconciled})
}
