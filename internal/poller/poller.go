// Package poller drives the periodic sync cycles: pulling bookings from
// the scheduling provider, filtering duplicates, assigning survivors and
// reconciling cancellations back onto the board.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/assign"
	"github.com/iliyamo/floor-plan-reservations/internal/calendly"
	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

// nearWindow mirrors the reconciler's customer-proximity tolerance for
// matching a cancellation to a live reservation.
const nearWindow = 5 * time.Minute

// defaultDuration backstops records whose duration was lost in the store.
const defaultDuration = 90

// Intervals configures cycle cadence.
type Intervals struct {
	Today     time.Duration
	Future    time.Duration
	Cancelled time.Duration
}

// Poller owns the three sync cycles and the nightly board reset.  Each
// cycle carries an in-flight flag so overlapping triggers (a slow API
// call outliving the tick, a manual trigger racing the timer) collapse
// into one run.
type Poller struct {
	provider   calendly.Provider
	batch      *assign.BatchProcessor
	reconciler *assign.Reconciler
	state      *floorplan.State
	records    store.RecordStore // nil in local-only mode
	market     *time.Location
	now        func() time.Time
	log        *zap.Logger

	todayBusy     atomic.Bool
	futureBusy    atomic.Bool
	cancelledBusy atomic.Bool

	lastResetDay string
}

// New wires a Poller.  records may be nil; now defaults to time.Now.
func New(provider calendly.Provider, batch *assign.BatchProcessor, reconciler *assign.Reconciler, state *floorplan.State, records store.RecordStore, market *time.Location, now func() time.Time, log *zap.Logger) *Poller {
	if provider == nil || batch == nil || reconciler == nil || state == nil || market == nil || log == nil {
		panic("nil dependency passed to poller.New")
	}
	if now == nil {
		now = time.Now
	}
	return &Poller{
		provider:   provider,
		batch:      batch,
		reconciler: reconciler,
		state:      state,
		records:    records,
		market:     market,
		now:        now,
		log:        log,
	}
}

// Start launches the cycle timers and blocks until ctx is cancelled.  An
// immediate today cycle runs first so the board is populated at boot
// without waiting out the first interval.
func (p *Poller) Start(ctx context.Context, iv Intervals) {
	p.lastResetDay = p.localDay()

	if _, err := p.RunTodayCycle(ctx); err != nil {
		p.log.Warn("initial today cycle failed", zap.Error(err))
	}

	today := time.NewTicker(iv.Today)
	future := time.NewTicker(iv.Future)
	cancelled := time.NewTicker(iv.Cancelled)
	nightly := time.NewTicker(time.Minute)
	defer today.Stop()
	defer future.Stop()
	defer cancelled.Stop()
	defer nightly.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-today.C:
			if _, err := p.RunTodayCycle(ctx); err != nil {
				p.log.Warn("today cycle failed", zap.Error(err))
			}
		case <-future.C:
			if _, err := p.RunFutureCycle(ctx); err != nil {
				p.log.Warn("future cycle failed", zap.Error(err))
			}
		case <-cancelled.C:
			if _, err := p.RunCancelledCycle(ctx); err != nil {
				p.log.Warn("cancelled cycle failed", zap.Error(err))
			}
		case <-nightly.C:
			p.maybeNightlyReset(ctx)
		}
	}
}

// RunTodayCycle pulls today's active bookings and assigns the new ones.
// A cycle already in flight makes this a no-op.
func (p *Poller) RunTodayCycle(ctx context.Context) (assign.BatchResult, error) {
	if !p.todayBusy.CompareAndSwap(false, true) {
		p.log.Debug("today cycle skipped, previous run still in flight")
		return assign.BatchResult{}, nil
	}
	defer p.todayBusy.Store(false)
	return p.runBookingCycle(ctx, "today", p.provider.TodayBookings)
}

// RunFutureCycle pulls upcoming bookings beyond today and assigns the
// new ones.
func (p *Poller) RunFutureCycle(ctx context.Context) (assign.BatchResult, error) {
	if !p.futureBusy.CompareAndSwap(false, true) {
		p.log.Debug("future cycle skipped, previous run still in flight")
		return assign.BatchResult{}, nil
	}
	defer p.futureBusy.Store(false)
	return p.runBookingCycle(ctx, "future", p.provider.UpcomingBookings)
}

func (p *Poller) runBookingCycle(ctx context.Context, name string, feed func(context.Context) ([]model.Booking, error)) (assign.BatchResult, error) {
	bookings, err := feed(ctx)
	if errors.Is(err, calendly.ErrNotConfigured) {
		// No provider, nothing to sync.  The board still works for
		// manual reservations.
		return assign.BatchResult{}, nil
	}
	if err != nil {
		return assign.BatchResult{}, &assign.Error{
			Code:    assign.CodeAdapterUnavailable,
			Message: fmt.Sprintf("%s cycle: fetch bookings failed", name),
			Err:     err,
		}
	}

	fresh := bookings[:0:0]
	for _, b := range bookings {
		if p.reconciler.AlreadyHandled(ctx, b.EventID, b.CustomerName, b.PhoneNumber, b.StartTime) {
			continue
		}
		fresh = append(fresh, b)
	}
	p.log.Info("poll cycle fetched bookings",
		zap.String("cycle", name),
		zap.Int("fetched", len(bookings)),
		zap.Int("new", len(fresh)))
	if len(fresh) == 0 {
		return assign.BatchResult{}, nil
	}

	result := p.batch.ProcessBatch(ctx, fresh)
	if result.Summary.Assigned > 0 {
		// The store may have coerced or rejected fields on write; reload
		// so the board shows what was actually persisted.
		if err := p.RefreshFromStore(ctx); err != nil {
			p.log.Warn("post-assignment refresh failed", zap.Error(err))
		}
	}
	return result, nil
}

// RunCancelledCycle pulls cancelled provider events and marks matching
// live reservations cancelled, appending the cancellation trail to the
// stored record.  Returns how many reservations were reconciled.
func (p *Poller) RunCancelledCycle(ctx context.Context) (int, error) {
	if !p.cancelledBusy.CompareAndSwap(false, true) {
		p.log.Debug("cancelled cycle skipped, previous run still in flight")
		return 0, nil
	}
	defer p.cancelledBusy.Store(false)

	cancellations, err := p.provider.CancelledEvents(ctx)
	if errors.Is(err, calendly.ErrNotConfigured) {
		return 0, nil
	}
	if err != nil {
		return 0, &assign.Error{
			Code:    assign.CodeAdapterUnavailable,
			Message: "cancelled cycle: fetch events failed",
			Err:     err,
		}
	}

	reconciled := 0
	for _, cn := range cancellations {
		res, ok := p.findLiveMatch(cn)
		if !ok || res.Status == model.StatusCancelled {
			continue
		}
		p.state.SetStatus(res.TableID, res.ID, model.StatusCancelled)
		if p.records != nil && res.ExternalID != "" {
			p.writeCancellationTrail(ctx, res, cn)
		}
		p.log.Info("reservation cancelled via provider",
			zap.String("event_id", cn.EventID),
			zap.String("table_id", res.TableID),
			zap.String("reason", cn.Reason))
		reconciled++
	}
	return reconciled, nil
}

// findLiveMatch locates the live calendly reservation a cancellation
// refers to: by event id when both sides carry one, otherwise by
// customer identity within the proximity window.
func (p *Poller) findLiveMatch(cn calendly.Cancellation) (model.Reservation, bool) {
	for _, t := range p.state.Snapshot() {
		for _, r := range t.Reservations {
			if r.Source != model.SourceCalendly {
				continue
			}
			if cn.EventID != "" && r.SourceEventID == cn.EventID {
				return r, true
			}
			if cn.StartTime.IsZero() || r.StartTime.IsZero() {
				continue
			}
			diff := absDiff(cn.StartTime, r.StartTime)
			if cn.CustomerName != "" && r.CustomerName == cn.CustomerName && diff < nearWindow {
				return r, true
			}
			if cn.PhoneNumber != "" && r.PhoneNumber == cn.PhoneNumber && diff < nearWindow {
				return r, true
			}
		}
	}
	return model.Reservation{}, false
}

func (p *Poller) writeCancellationTrail(ctx context.Context, res model.Reservation, cn calendly.Cancellation) {
	customerNotes := appendLine(res.CustomerNotes, cancellationNote(cn))
	systemNotes := appendLine(res.SystemNotes, "Cancelled event: "+cn.EventURI)
	if err := p.records.UpdateReservationNotes(ctx, res.ExternalID, customerNotes, systemNotes); err != nil {
		p.log.Warn("cancellation notes update failed",
			zap.String("record_id", res.ExternalID),
			zap.Error(err))
	}
	if err := p.records.UpdateReservationStatus(ctx, res.ExternalID, model.StatusCancelled); err != nil {
		p.log.Warn("cancellation status update failed",
			zap.String("record_id", res.ExternalID),
			zap.Error(err))
	}
}

func cancellationNote(cn calendly.Cancellation) string {
	note := "[CANCELLED]"
	if cn.Reason != "" {
		note += " " + cn.Reason
	}
	if cn.CanceledBy != "" {
		note += " (by " + cn.CanceledBy + ")"
	}
	return note
}

func appendLine(existing, line string) string {
	if strings.Contains(existing, line) {
		return existing
	}
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

// RefreshFromStore replaces the local board with the record store's
// current contents.  Records without a parseable start time are dropped;
// they cannot participate in conflict checks.
func (p *Poller) RefreshFromStore(ctx context.Context) error {
	if p.records == nil {
		return nil
	}
	recs, err := p.records.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("refresh from store: %w", err)
	}
	reservations := make([]model.Reservation, 0, len(recs))
	for _, rec := range recs {
		if rec.StartTime.IsZero() {
			continue
		}
		duration := rec.Duration
		if duration <= 0 {
			duration = defaultDuration
		}
		reservations = append(reservations, model.Reservation{
			ID:            rec.ID + ":" + rec.TableID,
			TableID:       rec.TableID,
			Source:        rec.Source,
			Status:        rec.Status,
			Pax:           rec.Pax,
			StartTime:     rec.StartTime,
			EndTime:       rec.StartTime.Add(time.Duration(duration) * time.Minute),
			Duration:      duration,
			CustomerName:  rec.CustomerName,
			PhoneNumber:   rec.PhoneNumber,
			CustomerNotes: rec.CustomerNotes,
			SystemNotes:   rec.SystemNotes,
			ExternalID:    rec.ID,
		})
	}
	p.state.ReplaceAll(reservations)
	p.log.Info("board refreshed from record store",
		zap.Int("records", len(recs)),
		zap.Int("placed", len(reservations)))
	return nil
}

// SweepDuplicates removes redundant calendly reservations that slipped
// past dedup in earlier sessions: same customer identity within the
// proximity window, or identical anonymous slots.  The earliest-starting
// copy of each booking survives; later copies are removed locally and
// deleted from the store.  Returns how many were removed.
func (p *Poller) SweepDuplicates(ctx context.Context) int {
	var candidates []model.Reservation
	for _, t := range p.state.Snapshot() {
		for _, r := range t.Reservations {
			if r.Source != model.SourceCalendly || r.StartTime.IsZero() {
				continue
			}
			candidates = append(candidates, r)
		}
	}
	// Earliest start first so the original booking survives and the
	// later copies are the ones removed.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartTime.Before(candidates[j].StartTime)
	})

	var kept []model.Reservation
	removed := 0
	for _, r := range candidates {
		dup := false
		for i := range kept {
			if sameGuestBooking(kept[i], r) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, r)
			continue
		}
		p.state.Remove(r.TableID, r.ID)
		if p.records != nil && r.ExternalID != "" {
			if err := p.records.DeleteReservation(ctx, r.ExternalID); err != nil {
				p.log.Warn("duplicate record delete failed",
					zap.String("record_id", r.ExternalID),
					zap.Error(err))
			}
		}
		p.log.Info("duplicate reservation removed",
			zap.String("table_id", r.TableID),
			zap.Time("start", r.StartTime))
		removed++
	}
	return removed
}

// sameGuestBooking reports whether two reservations describe one booking:
// matching phone or a real (non-placeholder) name within the proximity
// window, or two anonymous slots on the same minute.
func sameGuestBooking(a, b model.Reservation) bool {
	diff := absDiff(a.StartTime, b.StartTime)
	if a.PhoneNumber != "" && a.PhoneNumber == b.PhoneNumber {
		return diff < nearWindow
	}
	if a.CustomerName != "" && a.CustomerName != "Calendly Booking" &&
		strings.EqualFold(a.CustomerName, b.CustomerName) {
		return diff < nearWindow
	}
	if anonymousGuest(a) && anonymousGuest(b) {
		return diff < time.Minute
	}
	return false
}

func anonymousGuest(r model.Reservation) bool {
	return r.PhoneNumber == "" && (r.CustomerName == "" || r.CustomerName == "Calendly Booking")
}

// maybeNightlyReset clears the board once per venue-local day and rebuilds
// it from the record store, dropping yesterday's walk-ins and leaving
// only persisted reservations.
func (p *Poller) maybeNightlyReset(ctx context.Context) {
	day := p.localDay()
	if day == p.lastResetDay {
		return
	}
	p.lastResetDay = day
	p.log.Info("nightly board reset", zap.String("day", day))
	p.state.ResetAll()
	if err := p.RefreshFromStore(ctx); err != nil {
		p.log.Warn("post-reset refresh failed", zap.Error(err))
	}
	if _, err := p.RunTodayCycle(ctx); err != nil {
		p.log.Warn("post-reset today cycle failed", zap.Error(err))
	}
}

func (p *Poller) localDay() string {
	return p.now().In(p.market).Format("2006-01-02")
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
