package assign

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

// Result is a successful assignment: the chosen table and the constructed
// reservation.  The reservation is not yet committed anywhere; the caller
// owns persistence and the local append.
type Result struct {
	Table       model.Table
	Reservation model.Reservation
	// Warning is set when policy let something questionable through,
	// e.g. seating a party larger than the table's capacity.
	Warning string
}

// Orchestrator decides which table a normalized booking should occupy.
// It is free of I/O: duplicates beyond the in-process guard, persistence
// and event publishing are the batch processor's concern.
type Orchestrator struct {
	state    *floorplan.State
	selector *floorplan.Selector
	now      func() time.Time
	log      *zap.Logger
}

// NewOrchestrator wires the orchestrator.  now defaults to time.Now.
func NewOrchestrator(state *floorplan.State, selector *floorplan.Selector, now func() time.Time, log *zap.Logger) *Orchestrator {
	if state == nil || selector == nil || log == nil {
		panic("nil dependency passed to NewOrchestrator")
	}
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{state: state, selector: selector, now: now, log: log}
}

// Assign validates the booking, guards against in-batch duplicates,
// filters tables by capacity and conflicts, and selects the best table.
// Failures come back as *Error with a code; see errors.go for the retry
// semantics of each code.
func (o *Orchestrator) Assign(b model.Booking) (Result, error) {
	if b.StartTime.IsZero() || b.EndTime.IsZero() || !b.StartTime.Before(b.EndTime) {
		return Result{}, newError(CodeInvalidBooking, "booking is missing a valid time window")
	}
	if b.Pax < 1 {
		return Result{}, newError(CodeInvalidBooking, "booking is missing a party size")
	}
	if b.StartTime.Before(o.now().Add(-PastGrace)) {
		return Result{}, newError(CodePastBooking, "booking start %s is in the past", b.StartTime.Format(time.RFC3339))
	}

	// In-process duplicate guard.  The reconciler already filtered the
	// queue, but a booking assigned earlier in this same batch is not in
	// any fingerprint layer yet; this cheap scan catches it right before
	// commit.
	if dup := o.duplicateOnFloor(b); dup != nil {
		return Result{}, newError(CodeDuplicateBooking,
			"%s already has a reservation at %s on table %s",
			identity(b), dup.StartTime.Format("15:04"), dup.TableID)
	}

	policy := o.state.Policy()
	var available []*model.Table
	for _, t := range o.state.Snapshot() {
		if t.Capacity < b.Pax && !policy.AllowOverCapacity {
			continue
		}
		conflict, err := floorplan.HasConflict(t, b.StartTime, b.EndTime, policy.StrictSequentialBooking)
		if err != nil {
			return Result{}, newError(CodeInvalidBooking, "invalid booking window: %v", err)
		}
		if !conflict {
			available = append(available, t)
		}
	}
	if len(available) == 0 {
		return Result{}, newError(CodeNoTableAvailable,
			"no available tables for %d pax at %s", b.Pax, b.StartTime.Format(time.RFC3339))
	}

	table, ok := o.selector.SelectTable(b.Pax, available)
	if !ok {
		return Result{}, newError(CodeNoSuitableTable,
			"no suitable table for %d pax at %s", b.Pax, b.StartTime.Format(time.RFC3339))
	}

	res := Result{Table: *table, Reservation: o.buildReservation(b, table)}
	if b.Pax > table.Capacity {
		res.Warning = "party size exceeds table capacity"
		o.log.Warn("over-capacity assignment allowed by policy",
			zap.String("table_id", table.ID),
			zap.Int("capacity", table.Capacity),
			zap.Int("pax", b.Pax))
	}
	return res, nil
}

func (o *Orchestrator) buildReservation(b model.Booking, t *model.Table) model.Reservation {
	duration := b.Duration
	if duration <= 0 {
		duration = int(b.EndTime.Sub(b.StartTime) / time.Minute)
	}
	source := b.Source
	if source == "" {
		source = model.SourceCalendly
	}
	systemNotes := ""
	if source == model.SourceCalendly {
		systemNotes = "Automatically assigned from Calendly booking"
	}
	name := b.CustomerName
	if name == "" && source == model.SourceCalendly {
		name = placeholderName
	}
	return model.Reservation{
		ID:             uuid.NewString(),
		TableID:        t.ID,
		Source:         source,
		Status:         model.StatusReserved,
		Pax:            b.Pax,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Duration:       duration,
		CustomerName:   name,
		PhoneNumber:    b.PhoneNumber,
		CustomerNotes:  b.CustomerNotes,
		SpecialRequest: b.SpecialRequest,
		SystemNotes:    systemNotes,
		SourceEventID:  b.EventID,
	}
}

// duplicateOnFloor scans live reservations for a calendly booking with
// the same customer identity within the proximity window.
func (o *Orchestrator) duplicateOnFloor(b model.Booking) *model.Reservation {
	if !b.HasIdentity() {
		// Nothing to match on; anonymous dedup is the reconciler's
		// time-fingerprint job.
		return nil
	}
	for _, t := range o.state.Snapshot() {
		for i := range t.Reservations {
			r := &t.Reservations[i]
			if r.Source != model.SourceCalendly {
				continue
			}
			diff := absDiff(b.StartTime, r.StartTime)
			if b.CustomerName != "" && r.CustomerName == b.CustomerName && diff < nearWindow {
				return r
			}
			if b.PhoneNumber != "" && r.PhoneNumber == b.PhoneNumber && diff < nearWindow {
				return r
			}
		}
	}
	return nil
}

func identity(b model.Booking) string {
	switch {
	case b.CustomerName != "":
		return b.CustomerName
	case b.PhoneNumber != "":
		return b.PhoneNumber
	default:
		return "booking"
	}
}
