package airtable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

func TestExpandRecordMultiTable(t *testing.T) {
	rec := record{
		ID: "recABC",
		Fields: map[string]any{
			fieldTable:    "D1, D2,E1",
			fieldType:     "Calendly",
			fieldStatus:   "Reserved",
			fieldPax:      "14",
			fieldDateTime: "2026-08-28T11:00:00Z",
			fieldDuration: "90",
			fieldName:     "Alice Tan",
		},
	}

	out := expandRecord(rec)
	require.Len(t, out, 3)
	assert.Equal(t, "D1", out[0].TableID)
	assert.Equal(t, "D2", out[1].TableID)
	assert.Equal(t, "E1", out[2].TableID)
	for _, r := range out {
		assert.Equal(t, "recABC", r.ID)
		assert.Equal(t, model.SourceCalendly, r.Source)
		assert.Equal(t, 14, r.Pax)
		assert.Equal(t, 90, r.Duration)
		assert.Equal(t, time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC), r.StartTime)
	}
}

func TestExpandRecordNoTable(t *testing.T) {
	assert.Nil(t, expandRecord(record{ID: "recX", Fields: map[string]any{}}))
}

func TestExpandRecordRecoversFromNotes(t *testing.T) {
	rec := record{
		ID: "recY",
		Fields: map[string]any{
			fieldTable:         "C5",
			fieldCustomerNotes: "Customer: Bob Lim\nBirthday dinner",
			fieldSystemNotes:   "Duration: 75 minutes (until 20:15)",
		},
	}

	out := expandRecord(rec)
	require.Len(t, out, 1)
	assert.Equal(t, "Bob Lim", out[0].CustomerName)
	assert.Equal(t, 75, out[0].Duration)
	assert.True(t, out[0].StartTime.IsZero(), "unparseable time stays zero")
}

func TestExpandRecordNumericPax(t *testing.T) {
	// The Pax column has been both text and number across schema
	// revisions; JSON numbers decode as float64.
	rec := record{ID: "recZ", Fields: map[string]any{fieldTable: "B1", fieldPax: float64(4)}}
	out := expandRecord(rec)
	require.Len(t, out, 1)
	assert.Equal(t, 4, out[0].Pax)
}

func TestStatusRoundTrip(t *testing.T) {
	cases := map[model.Status]string{
		model.StatusReserved:  "Reserved",
		model.StatusArrived:   "Arrived",
		model.StatusPaid:      "Paid",
		model.StatusNoShow:    "No Show",
		model.StatusCancelled: "Cancelled",
	}
	for status, display := range cases {
		assert.Equal(t, display, statusToDisplay(status))
		assert.Equal(t, status, statusFromDisplay(display))
	}

	// Historical spellings.
	assert.Equal(t, model.StatusCancelled, statusFromDisplay("canceled"))
	assert.Equal(t, model.StatusArrived, statusFromDisplay("Walk in"))
	assert.Equal(t, model.StatusReserved, statusFromDisplay("anything else"))
}

func TestSourceMapping(t *testing.T) {
	assert.Equal(t, "Floor Plan", typeToDisplay(model.SourceWalkIn))
	assert.Equal(t, "Phone call", typeToDisplay(model.SourcePhoneCall))
	assert.Equal(t, "Calendly", typeToDisplay(model.SourceCalendly))

	assert.Equal(t, model.SourcePhoneCall, sourceFromType("Voice agent"))
	assert.Equal(t, model.SourceWalkIn, sourceFromType("Floor Plan"))
	assert.Equal(t, model.SourceCalendly, sourceFromType("calendly"))
}

func TestCreateFields(t *testing.T) {
	start := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	f := store.Fields{
		TableID:        "C5",
		Source:         model.SourceCalendly,
		Status:         model.StatusReserved,
		Pax:            2,
		StartTime:      start,
		Duration:       90,
		CustomerName:   "Alice Tan",
		PhoneNumber:    "+6591234567",
		CustomerNotes:  "anniversary",
		SpecialRequest: "window seat",
		SystemNotes:    "Automatically assigned from Calendly booking",
	}

	fields := createFields(f)
	assert.Equal(t, "C5", fields[fieldTable])
	assert.Equal(t, "Calendly", fields[fieldType])
	assert.Equal(t, "Reserved", fields[fieldStatus])
	assert.Equal(t, "2026-08-28T11:00:00Z", fields[fieldDateTime])
	assert.Equal(t, "2", fields[fieldPax], "pax is written as text")
	assert.Equal(t, "Alice Tan", fields[fieldName])
	assert.Equal(t, "window seat", fields[fieldNotes])
	assert.Equal(t, "Customer: Alice Tan\nanniversary", fields[fieldCustomerNotes])
	assert.Contains(t, fields[fieldSystemNotes], "Duration: 90 minutes (until 12:30)")
	assert.Contains(t, fields[fieldSystemNotes], "Automatically assigned")
}

func TestBasicFieldsKeepsIdentityInNotes(t *testing.T) {
	start := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	fields := basicFields(store.Fields{
		TableID:      "C5",
		Source:       model.SourceWalkIn,
		Status:       model.StatusArrived,
		StartTime:    start,
		CustomerName: "Bob Lim",
	})

	assert.Equal(t, "Customer: Bob Lim", fields[fieldCustomerNotes])
	assert.NotContains(t, fields, fieldName)
	assert.NotContains(t, fields, fieldPhone)
}
