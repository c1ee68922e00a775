package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/assign"
	"github.com/iliyamo/floor-plan-reservations/internal/calendly"
	"github.com/iliyamo/floor-plan-reservations/internal/config"
	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type fakeProvider struct {
	today     []model.Booking
	upcoming  []model.Booking
	cancelled []calendly.Cancellation
	err       error
}

func (f *fakeProvider) TodayBookings(ctx context.Context) ([]model.Booking, error) {
	return f.today, f.err
}

func (f *fakeProvider) UpcomingBookings(ctx context.Context) ([]model.Booking, error) {
	return f.upcoming, f.err
}

func (f *fakeProvider) CancelledEvents(ctx context.Context) ([]calendly.Cancellation, error) {
	return f.cancelled, f.err
}

type memStore struct {
	records       []store.Record
	notesUpdates  map[string][2]string
	statusUpdates map[string]model.Status
	deleted       []string
}

func newMemStore() *memStore {
	return &memStore{
		notesUpdates:  make(map[string][2]string),
		statusUpdates: make(map[string]model.Status),
	}
}

func (m *memStore) ListReservations(ctx context.Context) ([]store.Record, error) {
	return append([]store.Record(nil), m.records...), nil
}

func (m *memStore) CreateReservation(ctx context.Context, f store.Fields) (store.Record, error) {
	rec := store.Record{
		ID:           "rec-" + f.TableID,
		TableID:      f.TableID,
		Source:       f.Source,
		Status:       f.Status,
		Pax:          f.Pax,
		StartTime:    f.StartTime,
		Duration:     f.Duration,
		CustomerName: f.CustomerName,
		PhoneNumber:  f.PhoneNumber,
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memStore) UpdateReservationStatus(ctx context.Context, id string, status model.Status) error {
	m.statusUpdates[id] = status
	return nil
}

func (m *memStore) UpdateReservationNotes(ctx context.Context, id, customerNotes, systemNotes string) error {
	m.notesUpdates[id] = [2]string{customerNotes, systemNotes}
	return nil
}

func (m *memStore) DeleteReservation(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func newTestPoller(provider calendly.Provider, records store.RecordStore) (*Poller, *floorplan.State) {
	log := zap.NewNop()
	plan := config.DefaultFloorPlan()
	state := floorplan.NewState(plan, floorplan.DefaultPolicy())
	reconciler := assign.NewReconciler(state, records, fixedNow, log)
	orchestrator := assign.NewOrchestrator(state, floorplan.NewSelector(plan), fixedNow, log)
	batch := assign.NewBatchProcessor(orchestrator, state, records, reconciler, nil, log)
	return New(provider, batch, reconciler, state, records, time.UTC, fixedNow, log), state
}

func TestRunTodayCycleAssignsOnce(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(6 * time.Hour)
	provider := &fakeProvider{today: []model.Booking{{
		EventID: "ev-1", Pax: 2, CustomerName: "Alice Tan",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
		Source: model.SourceCalendly,
	}}}
	p, state := newTestPoller(provider, newMemStore())

	result, err := p.RunTodayCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Assigned)

	res, ok := state.Find("rec-C5:C5")
	require.True(t, ok, "post-assignment refresh rebuilds the board from the store")
	assert.Equal(t, "C5", res.TableID)

	// The feed re-delivers the same event; nothing new is assigned.
	result, err = p.RunTodayCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.Total)
}

func TestRunTodayCycleProviderDisabled(t *testing.T) {
	p, _ := newTestPoller(&fakeProvider{err: calendly.ErrNotConfigured}, nil)

	result, err := p.RunTodayCycle(context.Background())
	require.NoError(t, err, "a missing provider is not an error")
	assert.Zero(t, result.Summary.Total)
}

func TestRunCancelledCycle(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(6 * time.Hour)
	ms := newMemStore()
	provider := &fakeProvider{cancelled: []calendly.Cancellation{{
		EventID:   "ev-1",
		EventURI:  "https://api.calendly.com/scheduled_events/ev-1",
		StartTime: start,
		Reason:    "plans changed",
	}}}
	p, state := newTestPoller(provider, ms)

	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "C5", Source: model.SourceCalendly,
		Status: model.StatusReserved, SourceEventID: "ev-1", ExternalID: "recC5",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
	}))

	reconciled, err := p.RunCancelledCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled)

	res, ok := state.Find("r1")
	require.True(t, ok)
	assert.Equal(t, model.StatusCancelled, res.Status)
	assert.Equal(t, model.StatusCancelled, ms.statusUpdates["recC5"])
	notes := ms.notesUpdates["recC5"]
	assert.Contains(t, notes[0], "[CANCELLED] plans changed")
	assert.Contains(t, notes[1], "scheduled_events/ev-1")

	// Already-cancelled reservations are not reconciled twice.
	reconciled, err = p.RunCancelledCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reconciled)
}

func TestRunCancelledCycleMatchesByIdentity(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(6 * time.Hour)
	provider := &fakeProvider{cancelled: []calendly.Cancellation{{
		EventID:      "ev-other",
		CustomerName: "Bob Lim",
		StartTime:    start.Add(2 * time.Minute),
	}}}
	p, state := newTestPoller(provider, nil)

	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "B4", Source: model.SourceCalendly,
		Status: model.StatusReserved, CustomerName: "Bob Lim",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
	}))

	reconciled, err := p.RunCancelledCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled)
}

func TestSweepDuplicates(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(6 * time.Hour)
	ms := newMemStore()
	p, state := newTestPoller(&fakeProvider{}, ms)

	// The same customer ended up on two tables in an earlier session.
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "C5", Source: model.SourceCalendly,
		PhoneNumber: "+6591234567", ExternalID: "recC5",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
	}))
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r2", TableID: "B4", Source: model.SourceCalendly,
		PhoneNumber: "+6591234567", ExternalID: "recB4",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
	}))

	removed := p.SweepDuplicates(ctx)
	assert.Equal(t, 1, removed)

	_, firstOK := state.Find("r1")
	_, secondOK := state.Find("r2")
	assert.True(t, firstOK != secondOK, "exactly one of the pair survives")
	assert.Len(t, ms.deleted, 1)
}

func TestSweepDuplicatesProximityKeepsEarliest(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(6 * time.Hour)
	ms := newMemStore()
	p, state := newTestPoller(&fakeProvider{}, ms)

	// Same phone two minutes apart: one booking, double-assigned.  The
	// earlier copy is the original and stays.
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r2", TableID: "B4", Source: model.SourceCalendly,
		PhoneNumber: "+6591234567", ExternalID: "recB4",
		StartTime: start.Add(2 * time.Minute), EndTime: start.Add(92 * time.Minute),
	}))
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "C5", Source: model.SourceCalendly,
		PhoneNumber: "+6591234567", ExternalID: "recC5",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
	}))

	removed := p.SweepDuplicates(ctx)
	assert.Equal(t, 1, removed)

	_, ok := state.Find("r1")
	assert.True(t, ok, "the earlier copy survives")
	_, ok = state.Find("r2")
	assert.False(t, ok)
	assert.Equal(t, []string{"recB4"}, ms.deleted)
}

func TestSweepDuplicatesKeepsDistinctParties(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(6 * time.Hour)
	p, state := newTestPoller(&fakeProvider{}, nil)

	// Different customers at the same minute are different parties.
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "C5", Source: model.SourceCalendly,
		CustomerName: "Alice Tan",
		StartTime:    start, EndTime: start.Add(90 * time.Minute),
	}))
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r2", TableID: "B4", Source: model.SourceCalendly,
		CustomerName: "Bob Lim",
		StartTime:    start, EndTime: start.Add(90 * time.Minute),
	}))
	// Anonymous slots only collapse on the exact minute.
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r3", TableID: "D1", Source: model.SourceCalendly,
		CustomerName: "Calendly Booking",
		StartTime:    start, EndTime: start.Add(90 * time.Minute),
	}))
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r4", TableID: "D2", Source: model.SourceCalendly,
		CustomerName: "Calendly Booking",
		StartTime:    start.Add(2 * time.Minute), EndTime: start.Add(92 * time.Minute),
	}))

	assert.Equal(t, 0, p.SweepDuplicates(ctx))
}

func TestRefreshFromStoreDropsUnplaceable(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	start := testNow.Add(6 * time.Hour)
	ms.records = []store.Record{
		{ID: "recA", TableID: "C5", StartTime: start, Duration: 90, Source: model.SourceCalendly},
		{ID: "recB", TableID: "C4"}, // no start time
	}
	p, state := newTestPoller(&fakeProvider{}, ms)

	require.NoError(t, p.RefreshFromStore(ctx))
	_, ok := state.Find("recA:C5")
	assert.True(t, ok)
	_, ok = state.Find("recB:C4")
	assert.False(t, ok)

	// Records without duration default to a dinner seating.
	res, _ := state.Find("recA:C5")
	assert.Equal(t, start.Add(90*time.Minute), res.EndTime)
}
