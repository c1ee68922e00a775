package floorplan

import (
	"errors"
	"time"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

// ErrInvalidRange is returned when a candidate window is malformed
// (zero times or start at/after end).  This is a caller bug, not a
// conflict, so it surfaces as an error instead of a bool.
var ErrInvalidRange = errors.New("floorplan: candidate start must be before end")

// FindConflict returns the first reservation on the table that blocks the
// candidate [start, end) window, or nil when the window is free.
//
// Two rules are evaluated, in order:
//
//  1. Strict-sequential (when strict is true): a candidate may not start
//     before an existing reservation's end.  The floor policy is that a
//     table cannot be pre-booked to start while its current occupant's
//     stated window is still running, even when the slots do not
//     literally overlap.  A candidate starting exactly at an existing
//     end is allowed: back-to-back bookings never conflict.
//
//  2. Generic interval overlap: the candidate starts inside the existing
//     span, ends inside it, or fully contains it.
//
// Existing entries with missing or inverted times are skipped; a corrupt
// record synced from the store must never block the whole table.
func FindConflict(t *model.Table, start, end time.Time, strict bool) (*model.Reservation, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, ErrInvalidRange
	}
	for i := range t.Reservations {
		r := &t.Reservations[i]
		if !r.HasValidWindow() {
			continue
		}
		if strict && start.Before(r.EndTime) {
			return r, nil
		}
		startsInside := !start.Before(r.StartTime) && start.Before(r.EndTime)
		endsInside := end.After(r.StartTime) && !end.After(r.EndTime)
		contains := !start.After(r.StartTime) && !end.Before(r.EndTime)
		if startsInside || endsInside || contains {
			return r, nil
		}
	}
	return nil, nil
}

// HasConflict reports whether any reservation on the table blocks the
// candidate window.  See FindConflict for the policy.
func HasConflict(t *model.Table, start, end time.Time, strict bool) (bool, error) {
	r, err := FindConflict(t, start, end, strict)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}
