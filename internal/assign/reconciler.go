package assign

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

const (
	// PastGrace is how far in the past a booking may start before it is
	// treated as handled unconditionally.  Staff delete finished
	// bookings from the board; without this guard the next poll cycle
	// would resurrect them.
	PastGrace = 30 * time.Minute

	// exactWindow is the tolerance for "same time" matches.
	exactWindow = time.Minute
	// nearWindow is the tolerance for customer-identity matches.
	nearWindow = 5 * time.Minute

	// placeholderName is the name the provider feed uses when no invitee
	// name was captured.  It identifies nobody, so it counts as
	// anonymous for fingerprinting.
	placeholderName = "Calendly Booking"
)

// notesEventID recovers provider event-id fragments from free-text notes.
var notesEventID = regexp.MustCompile(`events/([a-zA-Z0-9-]+)`)

// Reconciler remembers which external bookings have already been assigned
// so repeated poll cycles stay idempotent.  The fingerprint set lives for
// the process lifetime and is reinforced by scanning live floor-plan
// state and the record store, each layer covering a failure mode the
// previous one misses: the feed re-delivers events, the store may lag a
// write, and process memory is lost on restart.
type Reconciler struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	state   *floorplan.State
	records store.RecordStore // nil when no record store is configured
	now     func() time.Time
	log     *zap.Logger
}

// NewReconciler builds a Reconciler over the floor-plan state and record
// store.  records may be nil; now defaults to time.Now when nil.
func NewReconciler(state *floorplan.State, records store.RecordStore, now func() time.Time, log *zap.Logger) *Reconciler {
	if state == nil || log == nil {
		panic("nil dependency passed to NewReconciler")
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		seen:    make(map[string]struct{}),
		state:   state,
		records: records,
		now:     now,
		log:     log,
	}
}

// AlreadyHandled reports whether the booking identified by the arguments
// has been assigned before.  Checks run cheapest-first:
//
//  1. start beyond the past grace period  -> handled (and marked)
//  2. fingerprint set (id, customer+time, time-only, anonymous+time)
//  3. live floor-plan scan of calendly reservations (backfills the set)
//  4. record-store scan by deterministic id or customer proximity
//
// Record-store errors are logged and treated as "no match"; dedup must
// not block assignment when the store is unreachable.
func (r *Reconciler) AlreadyHandled(ctx context.Context, eventID, customerName, phoneNumber string, start time.Time) bool {
	r.mu.Lock()
	if !start.IsZero() && start.Before(r.now().Add(-PastGrace)) {
		r.markLocked(eventID, customerName, phoneNumber, start)
		r.mu.Unlock()
		r.log.Info("past event treated as handled",
			zap.String("event_id", eventID),
			zap.Time("start", start))
		return true
	}
	if r.hitLocked(eventID, customerName, phoneNumber, start) {
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()

	if res, ok := r.scanState(customerName, phoneNumber, start); ok {
		r.mu.Lock()
		r.markLocked(eventID, customerName, phoneNumber, start)
		r.mu.Unlock()
		r.log.Info("duplicate found on live floor plan",
			zap.String("event_id", eventID),
			zap.String("table_id", res.TableID))
		return true
	}

	if r.scanRecords(ctx, customerName, phoneNumber, start) {
		r.mu.Lock()
		r.markLocked(eventID, customerName, phoneNumber, start)
		r.mu.Unlock()
		return true
	}
	return false
}

// MarkHandled records every fingerprint shape for a confirmed assignment.
func (r *Reconciler) MarkHandled(eventID, customerName, phoneNumber string, start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markLocked(eventID, customerName, phoneNumber, start)
}

// Reset drops every fingerprint.  Only tests and explicit operator resets
// call this; the set normally lives as long as the process.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[string]struct{})
}

// LoadFromPersistedState seeds the fingerprint set from reservations that
// already exist locally and in the record store, including event-id
// fragments recoverable from notes fields.  Must run once before the
// first duplicate check of a session.
func (r *Reconciler) LoadFromPersistedState(ctx context.Context) error {
	r.mu.Lock()
	for _, t := range r.state.Snapshot() {
		for i := range t.Reservations {
			res := &t.Reservations[i]
			if res.Source != model.SourceCalendly {
				continue
			}
			r.markLocked(res.SourceEventID, res.CustomerName, res.PhoneNumber, res.StartTime)
			r.seedNotesLocked(res.CustomerNotes, res.SystemNotes)
		}
	}
	r.mu.Unlock()

	if r.records == nil {
		return nil
	}
	recs, err := r.records.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("load persisted assignments: %w", err)
	}
	r.mu.Lock()
	for _, rec := range recs {
		if rec.Source != model.SourceCalendly {
			continue
		}
		r.markLocked("", rec.CustomerName, rec.PhoneNumber, rec.StartTime)
		r.seedNotesLocked(rec.CustomerNotes, rec.SystemNotes)
	}
	n := len(r.seen)
	r.mu.Unlock()
	r.log.Info("loaded existing assignments", zap.Int("fingerprints", n))
	return nil
}

// hitLocked checks the fingerprint shapes cheapest-first.
func (r *Reconciler) hitLocked(eventID, customerName, phoneNumber string, start time.Time) bool {
	if k := idKey(eventID); k != "" {
		if _, ok := r.seen[k]; ok {
			return true
		}
	}
	if k := customerKey(customerName, phoneNumber, start); k != "" {
		if _, ok := r.seen[k]; ok {
			return true
		}
	}
	if k := timeKey(start); k != "" {
		if _, ok := r.seen[k]; ok {
			return true
		}
	}
	if anonymous(customerName) {
		if k := noCustomerKey(start); k != "" {
			if _, ok := r.seen[k]; ok {
				return true
			}
		}
	}
	return false
}

func (r *Reconciler) markLocked(eventID, customerName, phoneNumber string, start time.Time) {
	if k := idKey(eventID); k != "" {
		r.seen[k] = struct{}{}
	}
	if k := customerKey(customerName, phoneNumber, start); k != "" {
		r.seen[k] = struct{}{}
	}
	if k := timeKey(start); k != "" {
		r.seen[k] = struct{}{}
	}
	if anonymous(customerName) {
		if k := noCustomerKey(start); k != "" {
			r.seen[k] = struct{}{}
		}
	}
}

func (r *Reconciler) seedNotesLocked(notes ...string) {
	for _, n := range notes {
		if m := notesEventID.FindStringSubmatch(n); m != nil {
			r.seen[idKey(m[1])] = struct{}{}
		}
	}
}

// scanState looks for an existing calendly reservation that matches the
// booking by time or customer identity.
func (r *Reconciler) scanState(customerName, phoneNumber string, start time.Time) (*model.Reservation, bool) {
	if start.IsZero() {
		return nil, false
	}
	for _, t := range r.state.Snapshot() {
		for i := range t.Reservations {
			res := &t.Reservations[i]
			if res.Source != model.SourceCalendly {
				continue
			}
			diff := absDiff(start, res.StartTime)
			exact := diff < exactWindow
			sameName := customerName != "" && res.CustomerName == customerName && diff < nearWindow
			samePhone := phoneNumber != "" && res.PhoneNumber == phoneNumber && diff < nearWindow
			bothAnonymous := exact && anonymous(res.CustomerName) && anonymous(customerName)
			if exact || sameName || samePhone || bothAnonymous {
				return res, true
			}
		}
	}
	return nil, false
}

// scanRecords queries the record store for a matching reservation.  The
// deterministic ReservationID scheme is checked first, then customer
// identity within the proximity window.
func (r *Reconciler) scanRecords(ctx context.Context, customerName, phoneNumber string, start time.Time) bool {
	if r.records == nil || start.IsZero() {
		return false
	}
	recs, err := r.records.ListReservations(ctx)
	if err != nil {
		r.log.Warn("record-store duplicate check failed", zap.Error(err))
		return false
	}
	wantID := LegacyReservationID(start)
	for _, rec := range recs {
		if rec.ReservationID != "" && rec.ReservationID == wantID {
			return true
		}
		if rec.Source != model.SourceCalendly {
			continue
		}
		diff := absDiff(start, rec.StartTime)
		if customerName != "" && rec.CustomerName == customerName && diff < nearWindow {
			return true
		}
		if phoneNumber != "" && rec.PhoneNumber == phoneNumber && diff < nearWindow {
			return true
		}
	}
	return false
}

// LegacyReservationID reproduces the deterministic id the earlier voice
// integration wrote into the store's Reservation_ID column.  Only its
// exact shape matters for matching.
func LegacyReservationID(start time.Time) string {
	return fmt.Sprintf("C5-%04d-%02d-%02d-%02d:%02dpm",
		start.Year(), int(start.Month()), start.Day(), start.Hour(), start.Minute())
}

// Fingerprint shapes.  Times are truncated to the minute in UTC so the
// same slot always maps to the same key regardless of second jitter.

func idKey(eventID string) string {
	if eventID == "" {
		return ""
	}
	return "id:" + eventID
}

func customerKey(customerName, phoneNumber string, start time.Time) string {
	m := minuteStamp(start)
	if m == "" {
		return ""
	}
	if phoneNumber != "" {
		return "phone:" + phoneNumber + ":" + m
	}
	if customerName != "" {
		return "name:" + slug(customerName) + ":" + m
	}
	return ""
}

func timeKey(start time.Time) string {
	m := minuteStamp(start)
	if m == "" {
		return ""
	}
	return "time:" + m
}

func noCustomerKey(start time.Time) string {
	m := minuteStamp(start)
	if m == "" {
		return ""
	}
	return "no_customer:" + m
}

func minuteStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04")
}

func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

func anonymous(name string) bool {
	return name == "" || name == placeholderName
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
