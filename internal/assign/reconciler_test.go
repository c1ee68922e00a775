package assign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/config"
	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

// fakeStore is an in-memory RecordStore for engine tests.
type fakeStore struct {
	records   []store.Record
	listErr   error
	createErr func(f store.Fields) error
	created   []store.Fields
	deleted   []string
}

func (f *fakeStore) ListReservations(ctx context.Context) ([]store.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]store.Record(nil), f.records...), nil
}

func (f *fakeStore) CreateReservation(ctx context.Context, fields store.Fields) (store.Record, error) {
	if f.createErr != nil {
		if err := f.createErr(fields); err != nil {
			return store.Record{}, err
		}
	}
	f.created = append(f.created, fields)
	return store.Record{
		ID:           "rec" + fields.TableID + fields.StartTime.Format("1504"),
		TableID:      fields.TableID,
		Source:       fields.Source,
		Status:       fields.Status,
		Pax:          fields.Pax,
		StartTime:    fields.StartTime,
		Duration:     fields.Duration,
		CustomerName: fields.CustomerName,
		PhoneNumber:  fields.PhoneNumber,
	}, nil
}

func (f *fakeStore) UpdateReservationStatus(ctx context.Context, id string, status model.Status) error {
	return nil
}

func (f *fakeStore) UpdateReservationNotes(ctx context.Context, id, customerNotes, systemNotes string) error {
	return nil
}

func (f *fakeStore) DeleteReservation(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestState() *floorplan.State {
	return floorplan.NewState(config.DefaultFloorPlan(), floorplan.DefaultPolicy())
}

func TestAlreadyHandledFingerprints(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newTestState(), nil, fixedNow, zap.NewNop())
	start := testNow.Add(6 * time.Hour)

	assert.False(t, r.AlreadyHandled(ctx, "ev-1", "Alice Tan", "+6591234567", start))

	r.MarkHandled("ev-1", "Alice Tan", "+6591234567", start)

	// Same event id, even with the identity stripped.
	assert.True(t, r.AlreadyHandled(ctx, "ev-1", "", "", time.Time{}))
	// Same phone near the same slot maps to the same customer key.
	assert.True(t, r.AlreadyHandled(ctx, "ev-2", "Alice Tan", "+6591234567", start))
	// Same minute with a different identity still hits the time key.
	assert.True(t, r.AlreadyHandled(ctx, "ev-3", "Bob Lim", "+6598765432", start.Add(10*time.Second)))
	// A different slot is genuinely new.
	assert.False(t, r.AlreadyHandled(ctx, "ev-4", "Bob Lim", "+6598765432", start.Add(2*time.Hour)))
}

func TestAlreadyHandledPastGrace(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newTestState(), nil, fixedNow, zap.NewNop())

	// 45 minutes ago is beyond the 30-minute grace: treated as handled
	// without ever having been marked, and remembered afterwards.
	past := testNow.Add(-45 * time.Minute)
	assert.True(t, r.AlreadyHandled(ctx, "ev-old", "Carol", "", past))
	assert.True(t, r.AlreadyHandled(ctx, "", "Carol", "", past), "grace hit is fingerprinted")

	// 10 minutes ago is inside the grace window and still assignable.
	recent := testNow.Add(-10 * time.Minute)
	assert.False(t, r.AlreadyHandled(ctx, "ev-recent", "Dana", "", recent))
}

func TestAlreadyHandledScansLiveState(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	start := testNow.Add(5 * time.Hour)
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "C5", Source: model.SourceCalendly,
		CustomerName: "Dana Ong", PhoneNumber: "+6590001111",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
	}))
	r := NewReconciler(state, nil, fixedNow, zap.NewNop())

	// Same customer two minutes off: caught by the live-state scan even
	// though the fingerprint set is empty.
	assert.True(t, r.AlreadyHandled(ctx, "ev-9", "Dana Ong", "", start.Add(2*time.Minute)))
	// The hit was backfilled into the set: a state reset does not forget it.
	state.ResetAll()
	assert.True(t, r.AlreadyHandled(ctx, "ev-9", "Dana Ong", "", start.Add(2*time.Minute)))
}

func TestAlreadyHandledAnonymousExactTime(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	start := testNow.Add(5 * time.Hour)
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "C5", Source: model.SourceCalendly,
		CustomerName: "Calendly Booking",
		StartTime:    start, EndTime: start.Add(90 * time.Minute),
	}))
	r := NewReconciler(state, nil, fixedNow, zap.NewNop())

	// Placeholder names identify nobody; two anonymous bookings at the
	// exact same time are the same booking.
	assert.True(t, r.AlreadyHandled(ctx, "ev-a", "", "", start.Add(20*time.Second)))
}

func TestAlreadyHandledScansRecordStore(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(5 * time.Hour)
	fs := &fakeStore{records: []store.Record{
		{ID: "recX", ReservationID: LegacyReservationID(start), TableID: "C5", StartTime: start.Add(time.Hour)},
	}}
	r := NewReconciler(newTestState(), fs, fixedNow, zap.NewNop())

	// The deterministic id written by the earlier voice integration
	// matches regardless of the record's other fields.
	assert.True(t, r.AlreadyHandled(ctx, "ev-b", "Eve", "", start))
}

func TestAlreadyHandledStoreErrorIsNoMatch(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{listErr: errors.New("boom")}
	r := NewReconciler(newTestState(), fs, fixedNow, zap.NewNop())

	start := testNow.Add(5 * time.Hour)
	assert.False(t, r.AlreadyHandled(ctx, "ev-c", "Finn", "", start),
		"an unreachable store must not block assignment")
}

func TestLoadFromPersistedState(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	start := testNow.Add(5 * time.Hour)
	require.NoError(t, state.TryCommit(model.Reservation{
		ID: "r1", TableID: "C5", Source: model.SourceCalendly,
		CustomerName: "Gina Ho", PhoneNumber: "+6590002222",
		StartTime: start, EndTime: start.Add(90 * time.Minute),
		SystemNotes: "https://api.calendly.com/scheduled_events/events/abc-123",
	}))
	fs := &fakeStore{records: []store.Record{
		{ID: "rec1", TableID: "B4", Source: model.SourceCalendly,
			CustomerName: "Hank Wu", StartTime: start.Add(time.Hour)},
	}}
	r := NewReconciler(state, fs, fixedNow, zap.NewNop())
	require.NoError(t, r.LoadFromPersistedState(ctx))

	assert.True(t, r.AlreadyHandled(ctx, "", "Gina Ho", "", start))
	assert.True(t, r.AlreadyHandled(ctx, "abc-123", "", "", time.Time{}), "event id recovered from notes")
	assert.True(t, r.AlreadyHandled(ctx, "", "Hank Wu", "", start.Add(time.Hour)))
}

func TestResetForgetsFingerprints(t *testing.T) {
	ctx := context.Background()
	r := NewReconciler(newTestState(), nil, fixedNow, zap.NewNop())
	start := testNow.Add(6 * time.Hour)

	r.MarkHandled("ev-1", "Alice Tan", "", start)
	require.True(t, r.AlreadyHandled(ctx, "ev-1", "", "", time.Time{}))

	r.Reset()
	assert.False(t, r.AlreadyHandled(ctx, "ev-1", "", "", time.Time{}))
}

func TestLegacyReservationIDShape(t *testing.T) {
	start := time.Date(2026, 8, 28, 19, 5, 0, 0, time.UTC)
	assert.Equal(t, "C5-2026-08-28-19:05pm", LegacyReservationID(start))
}
