package assign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishTableAssigned(ctx context.Context, table model.Table, res model.Reservation) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, table.ID)
	return nil
}

func newBatch(state *floorplan.State, records store.RecordStore, events EventPublisher) *BatchProcessor {
	reconciler := NewReconciler(state, records, fixedNow, zap.NewNop())
	orchestrator := newOrchestrator(state)
	return NewBatchProcessor(orchestrator, state, records, reconciler, events, zap.NewNop())
}

func booking(name string, start time.Time) model.Booking {
	return model.Booking{
		Pax:          2,
		StartTime:    start,
		EndTime:      start.Add(90 * time.Minute),
		CustomerName: name,
	}
}

func TestProcessBatchPartialFailure(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	fs := &fakeStore{createErr: func(f store.Fields) error {
		if f.CustomerName == "Bella" {
			return errors.New("store down")
		}
		return nil
	}}
	events := &fakePublisher{}
	b := newBatch(state, fs, events)

	start := testNow.Add(6 * time.Hour)
	result := b.ProcessBatch(ctx, []model.Booking{
		booking("Alma", start),
		booking("Bella", start),
		booking("Cleo", start),
	})

	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.Assigned)
	assert.Equal(t, 1, result.Summary.Failed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "Bella", result.Failed[0].Booking.CustomerName)
	assert.Equal(t, CodePersistenceFailure, result.Failed[0].Code)

	// The failed booking's local append was rolled back: no table holds
	// a reservation for Bella, and only two records were persisted.
	for _, tb := range state.Snapshot() {
		for _, r := range tb.Reservations {
			assert.NotEqual(t, "Bella", r.CustomerName)
		}
	}
	assert.Len(t, fs.created, 2)
	assert.Len(t, events.published, 2)

	// Committed reservations carry their record-store id.
	res, ok := state.Find(result.Successful[0].Result.Reservation.ID)
	require.True(t, ok)
	assert.NotEmpty(t, res.ExternalID)
}

func TestProcessBatchSequentialConflicts(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	b := newBatch(state, nil, nil)

	start := testNow.Add(6 * time.Hour)
	result := b.ProcessBatch(ctx, []model.Booking{
		booking("Alma", start),
		booking("Bree", start),
	})
	require.Equal(t, 2, result.Summary.Assigned)

	// Both wanted C5; the second saw the first's commit and went to the
	// fallback table instead of double-booking.
	first := result.Successful[0].Result.Table.ID
	second := result.Successful[1].Result.Table.ID
	assert.Equal(t, "C5", first)
	assert.NotEqual(t, first, second)
}

func TestProcessBatchDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	b := newBatch(state, nil, nil)

	start := testNow.Add(6 * time.Hour)
	first := b.ProcessBatch(ctx, []model.Booking{booking("Dina", start)})
	require.Equal(t, 1, first.Summary.Assigned)

	// The same customer three minutes later is a re-delivery, not a new
	// party.
	second := b.ProcessBatch(ctx, []model.Booking{booking("Dina", start.Add(3 * time.Minute))})
	require.Len(t, second.Failed, 1)
	assert.Equal(t, CodeDuplicateBooking, second.Failed[0].Code)
}

func TestProcessBatchPublishFailureIsAdvisory(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	b := newBatch(state, nil, &fakePublisher{err: errors.New("broker down")})

	start := testNow.Add(6 * time.Hour)
	result := b.ProcessBatch(ctx, []model.Booking{booking("Elsa", start)})
	assert.Equal(t, 1, result.Summary.Assigned, "a dead broker must not fail the assignment")
}

func TestProcessBatchMarksHandled(t *testing.T) {
	ctx := context.Background()
	state := newTestState()
	reconciler := NewReconciler(state, nil, fixedNow, zap.NewNop())
	b := NewBatchProcessor(newOrchestrator(state), state, nil, reconciler, nil, zap.NewNop())

	start := testNow.Add(6 * time.Hour)
	bk := booking("Faye", start)
	bk.EventID = "ev-77"
	result := b.ProcessBatch(ctx, []model.Booking{bk})
	require.Equal(t, 1, result.Summary.Assigned)

	assert.True(t, reconciler.AlreadyHandled(ctx, "ev-77", "", "", time.Time{}))
	assert.True(t, reconciler.AlreadyHandled(ctx, "", "Faye", "", start))
}
