package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/floor-plan-reservations/internal/assign"
	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

// ReservationHandler covers the manual reservation flow: staff creating
// walk-ins and phone bookings, moving reservations through their
// lifecycle, and clearing tables.
type ReservationHandler struct {
	State   *floorplan.State
	Batch   *assign.BatchProcessor
	Records store.RecordStore // nil in local-only mode
}

func NewReservationHandler(state *floorplan.State, batch *assign.BatchProcessor, records store.RecordStore) *ReservationHandler {
	return &ReservationHandler{State: state, Batch: batch, Records: records}
}

type createReservationReq struct {
	TableID        string    `json:"tableId"` // empty -> auto-assign
	Source         string    `json:"source"`
	Pax            int       `json:"pax"`
	StartTime      time.Time `json:"startTime"`
	DurationMin    int       `json:"durationMin"`
	CustomerName   string    `json:"customerName"`
	PhoneNumber    string    `json:"phoneNumber"`
	CustomerNotes  string    `json:"customerNotes"`
	SpecialRequest string    `json:"specialRequest"`
}

// Create places a manual reservation.  With a table id the reservation
// goes to that exact table, subject to the conflict check; without one
// the assignment engine picks the table the same way it does for
// provider bookings.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.StartTime.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "startTime required"})
	}
	if req.Pax < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pax must be at least 1"})
	}
	source, ok := parseSource(req.Source)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown source"})
	}
	duration := req.DurationMin
	if duration <= 0 {
		duration = 90
	}
	end := req.StartTime.Add(time.Duration(duration) * time.Minute)

	if req.TableID == "" {
		return h.autoAssign(c, req, source, duration, end)
	}
	return h.directPlace(c, req, source, duration, end)
}

func (h *ReservationHandler) autoAssign(c echo.Context, req createReservationReq, source model.Source, duration int, end time.Time) error {
	booking := model.Booking{
		StartTime:      req.StartTime,
		EndTime:        end,
		Duration:       duration,
		Pax:            req.Pax,
		CustomerName:   req.CustomerName,
		PhoneNumber:    req.PhoneNumber,
		CustomerNotes:  req.CustomerNotes,
		SpecialRequest: req.SpecialRequest,
		Source:         source,
	}
	result := h.Batch.ProcessBatch(c.Request().Context(), []model.Booking{booking})
	if len(result.Failed) > 0 {
		f := result.Failed[0]
		return c.JSON(statusForCode(f.Code), echo.Map{"error": f.Message, "code": f.Code})
	}
	out := result.Successful[0].Result
	resp := echo.Map{"table": out.Table, "reservation": out.Reservation}
	if out.Warning != "" {
		resp["warning"] = out.Warning
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *ReservationHandler) directPlace(c echo.Context, req createReservationReq, source model.Source, duration int, end time.Time) error {
	table, ok := h.State.Table(req.TableID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown table " + req.TableID})
	}

	// Manual placement honors the same capacity policy as auto-assignment.
	warning := ""
	if req.Pax > table.Capacity {
		if !h.State.Policy().AllowOverCapacity {
			return c.JSON(http.StatusConflict, echo.Map{
				"error": fmt.Sprintf("table %s seats %d, party of %d needs a larger table", table.ID, table.Capacity, req.Pax),
				"code":  assign.CodeNoSuitableTable,
			})
		}
		warning = "party size exceeds table capacity"
	}

	res := model.Reservation{
		ID:             uuid.NewString(),
		TableID:        table.ID,
		Source:         source,
		Status:         model.StatusReserved,
		Pax:            req.Pax,
		StartTime:      req.StartTime,
		EndTime:        end,
		Duration:       duration,
		CustomerName:   req.CustomerName,
		PhoneNumber:    req.PhoneNumber,
		CustomerNotes:  req.CustomerNotes,
		SpecialRequest: req.SpecialRequest,
	}
	if err := h.State.TryCommit(res); err != nil {
		var ce *floorplan.ConflictError
		if errors.As(err, &ce) {
			return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "code": assign.CodeConflictDetected})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if h.Records != nil {
		rec, err := h.Records.CreateReservation(c.Request().Context(), store.Fields{
			TableID:        res.TableID,
			Source:         res.Source,
			Status:         res.Status,
			Pax:            res.Pax,
			StartTime:      res.StartTime,
			Duration:       res.Duration,
			CustomerName:   res.CustomerName,
			PhoneNumber:    res.PhoneNumber,
			CustomerNotes:  res.CustomerNotes,
			SpecialRequest: res.SpecialRequest,
		})
		if err != nil {
			h.State.Remove(res.TableID, res.ID)
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "record store rejected reservation", "code": assign.CodePersistenceFailure})
		}
		res.ExternalID = rec.ID
		h.State.SetExternalID(res.TableID, res.ID, rec.ID)
	}

	resp := echo.Map{"table": table, "reservation": res}
	if warning != "" {
		resp["warning"] = warning
	}
	return c.JSON(http.StatusCreated, resp)
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateStatus moves a reservation through its lifecycle.  A no-show
// clears the table locally and deletes the stored record; the table is
// free again immediately.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	id := c.Param("id")
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status, ok := parseStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	res, ok := h.State.Find(id)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}

	if status == model.StatusNoShow {
		h.State.Remove(res.TableID, res.ID)
	} else {
		h.State.SetStatus(res.TableID, res.ID, status)
	}

	if h.Records != nil && res.ExternalID != "" {
		if err := h.Records.UpdateReservationStatus(c.Request().Context(), res.ExternalID, status); err != nil {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "record store update failed"})
		}
	}

	res.Status = status
	return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// Delete removes a reservation from the board and the record store.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	res, ok := h.State.Find(id)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	h.State.Remove(res.TableID, res.ID)
	if h.Records != nil && res.ExternalID != "" {
		if err := h.Records.DeleteReservation(c.Request().Context(), res.ExternalID); err != nil {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "record store delete failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func parseSource(s string) (model.Source, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "walk-in", "walk_in", "walkin":
		return model.SourceWalkIn, true
	case "phone-call", "phone_call", "phone":
		return model.SourcePhoneCall, true
	case "calendly":
		return model.SourceCalendly, true
	default:
		return "", false
	}
}

func parseStatus(s string) (model.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reserved":
		return model.StatusReserved, true
	case "arrived":
		return model.StatusArrived, true
	case "paid":
		return model.StatusPaid, true
	case "no-show", "no_show", "noshow":
		return model.StatusNoShow, true
	case "cancelled", "canceled":
		return model.StatusCancelled, true
	default:
		return "", false
	}
}

// statusForCode maps the engine's error taxonomy onto HTTP statuses.
func statusForCode(code assign.ErrorCode) int {
	switch code {
	case assign.CodeInvalidBooking, assign.CodePastBooking:
		return http.StatusBadRequest
	case assign.CodeDuplicateBooking, assign.CodeConflictDetected,
		assign.CodeNoTableAvailable, assign.CodeNoSuitableTable:
		return http.StatusConflict
	case assign.CodeAdapterUnavailable, assign.CodePersistenceFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
