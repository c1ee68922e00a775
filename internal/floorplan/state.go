package floorplan

import (
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/floor-plan-reservations/internal/config"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

// Policy carries the assignment policy switches.  Both exist because the
// floor rules have flipped between revisions of the house style; they are
// configuration, not constants.
type Policy struct {
	// StrictSequentialBooking enables conflict rule 1: a candidate may
	// not start before any existing reservation's end.
	StrictSequentialBooking bool
	// AllowOverCapacity lets a booking with pax above a table's capacity
	// through with a warning instead of filtering the table out.
	AllowOverCapacity bool
}

// DefaultPolicy is the shipped floor policy: strict sequencing on,
// over-capacity seating off.
func DefaultPolicy() Policy {
	return Policy{StrictSequentialBooking: true, AllowOverCapacity: false}
}

// State owns the in-memory floor plan: the static table set and every
// reservation currently bound to a table.  All access goes through its
// methods; there are no package globals.  A single RWMutex guards the
// table slices, and TryCommit re-checks conflicts under the write lock so
// two concurrent assignments can never double-book a table.
type State struct {
	mu     sync.RWMutex
	tables []*model.Table
	byID   map[string]*model.Table
	policy Policy
}

// NewState builds the floor-plan state from a layout.  Duplicate table ids
// in the layout are a configuration bug and panic, matching the
// constructor contracts elsewhere in this codebase.
func NewState(plan config.FloorPlan, policy Policy) *State {
	s := &State{
		tables: make([]*model.Table, 0, len(plan.Tables)),
		byID:   make(map[string]*model.Table, len(plan.Tables)),
		policy: policy,
	}
	for _, def := range plan.Tables {
		if _, dup := s.byID[def.ID]; dup {
			panic(fmt.Sprintf("floorplan: duplicate table id %q in layout", def.ID))
		}
		t := &model.Table{ID: def.ID, Capacity: def.Capacity, Type: def.Type, Reservations: []model.Reservation{}}
		s.tables = append(s.tables, t)
		s.byID[def.ID] = t
	}
	return s
}

// Policy returns the active assignment policy.
func (s *State) Policy() Policy { return s.policy }

// Snapshot returns a deep copy of every table.  Callers may read and
// filter the copy freely without holding any lock; the copy never aliases
// live state.
func (s *State) Snapshot() []*model.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Table, len(s.tables))
	for i, t := range s.tables {
		c := *t
		c.Reservations = append([]model.Reservation(nil), t.Reservations...)
		out[i] = &c
	}
	return out
}

// Table returns a copy of one table, or false when the id is unknown.
func (s *State) Table(id string) (model.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return model.Table{}, false
	}
	c := *t
	c.Reservations = append([]model.Reservation(nil), t.Reservations...)
	return c, true
}

// TryCommit appends the reservation to its table if and only if the
// window is still free, re-running the conflict check under the write
// lock.  This is the only mutation path for new reservations, which makes
// the check-then-append sequence atomic.  The table's list stays sorted
// by start time.
func (s *State) TryCommit(res model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[res.TableID]
	if !ok {
		return fmt.Errorf("floorplan: unknown table %q", res.TableID)
	}
	blocking, err := FindConflict(t, res.StartTime, res.EndTime, s.policy.StrictSequentialBooking)
	if err != nil {
		return err
	}
	if blocking != nil {
		return &ConflictError{TableID: t.ID, Blocking: *blocking}
	}
	t.Reservations = append(t.Reservations, res)
	sortByStart(t.Reservations)
	return nil
}

// Remove deletes a reservation by local id and reports whether it was
// present.  Used for rollback when persistence fails and for cancel and
// no-show flows.
func (s *State) Remove(tableID, reservationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[tableID]
	if !ok {
		return false
	}
	for i := range t.Reservations {
		if t.Reservations[i].ID == reservationID {
			t.Reservations = append(t.Reservations[:i], t.Reservations[i+1:]...)
			return true
		}
	}
	return false
}

// SetExternalID links a committed reservation to its record-store record.
func (s *State) SetExternalID(tableID, reservationID, externalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[tableID]
	if !ok {
		return false
	}
	for i := range t.Reservations {
		if t.Reservations[i].ID == reservationID {
			t.Reservations[i].ExternalID = externalID
			return true
		}
	}
	return false
}

// SetStatus updates a reservation's lifecycle status in place.
func (s *State) SetStatus(tableID, reservationID string, status model.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[tableID]
	if !ok {
		return false
	}
	for i := range t.Reservations {
		if t.Reservations[i].ID == reservationID {
			t.Reservations[i].Status = status
			return true
		}
	}
	return false
}

// Find locates a reservation by local id across all tables.
func (s *State) Find(reservationID string) (model.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tables {
		for i := range t.Reservations {
			if t.Reservations[i].ID == reservationID {
				return t.Reservations[i], true
			}
		}
	}
	return model.Reservation{}, false
}

// ReplaceAll swaps the entire reservation set for the one given, grouping
// by table id and dropping entries that reference unknown tables.  Used
// when refreshing from the record store, which is the source of truth
// after a batch persists.
func (s *State) ReplaceAll(reservations []model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tables {
		t.Reservations = t.Reservations[:0]
	}
	for _, r := range reservations {
		t, ok := s.byID[r.TableID]
		if !ok {
			continue
		}
		t.Reservations = append(t.Reservations, r)
	}
	for _, t := range s.tables {
		sortByStart(t.Reservations)
	}
}

// ResetAll clears every local reservation.  The nightly sweep calls this
// at midnight; the record store is deliberately untouched.
func (s *State) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tables {
		t.Reservations = t.Reservations[:0]
	}
}

func sortByStart(rs []model.Reservation) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].StartTime.Before(rs[j].StartTime)
	})
}

// ConflictError reports the reservation blocking a commit.  The message
// names the blocking window so manual entry can show staff exactly which
// booking is in the way.
type ConflictError struct {
	TableID  string
	Blocking model.Reservation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("table %s is blocked by a reservation from %s to %s",
		e.TableID,
		e.Blocking.StartTime.Format("15:04"),
		e.Blocking.EndTime.Format("15:04"))
}
