// Package store defines the record-store contract the assignment engine
// persists through.  Two implementations exist: the Airtable adapter in
// internal/airtable and the MySQL store in this package.  The engine only
// ever sees this interface, so a deployment picks its backend in main.
package store

import (
	"context"
	"time"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

// Record is one logical reservation read back from the record store.  A
// physical store record naming several tables is expanded into one Record
// per table id before it reaches callers.
//
// Fields:
//  ID            – store record id (links local reservations to the store).
//  ReservationID – deterministic provider-written id, when present.
//  TableID       – single table code after expansion.
//  Source        – reservation origin, mapped from the store's type string.
//  Status        – lifecycle status, mapped from the store's display string.
//  Pax           – party size; zero when the store field was absent.
//  StartTime     – reservation start (UTC); zero when unparseable.
//  Duration      – minutes; zero when the store carried none.
//  CustomerName  – extracted name, possibly recovered from notes.
//  PhoneNumber   – contact number.
//  CustomerNotes – customer-entered notes.
//  SystemNotes   – machine-written notes.
type Record struct {
	ID            string
	ReservationID string
	TableID       string
	Source        model.Source
	Status        model.Status
	Pax           int
	StartTime     time.Time
	Duration      int
	CustomerName  string
	PhoneNumber   string
	CustomerNotes string
	SystemNotes   string
}

// Fields is the write-side shape for creating a reservation record.
type Fields struct {
	TableID        string
	Source         model.Source
	Status         model.Status
	Pax            int
	StartTime      time.Time
	Duration       int
	CustomerName   string
	PhoneNumber    string
	CustomerNotes  string
	SpecialRequest string
	SystemNotes    string
}

// RecordStore is the external system of record for reservations.
// Implementations own their caching and field-name mapping; any call
// error must invalidate cached reads so the next list is fresh.
type RecordStore interface {
	// ListReservations returns every reservation record, expanded per
	// table id.  Implementations may serve a short-lived cache.
	ListReservations(ctx context.Context) ([]Record, error)

	// CreateReservation persists a new reservation and returns the
	// stored record (with its store id).
	CreateReservation(ctx context.Context, f Fields) (Record, error)

	// UpdateReservationStatus maps the local status onto the store's
	// display value.  A transition to no-show deletes the record
	// instead, matching the board's operational convention.
	UpdateReservationStatus(ctx context.Context, id string, status model.Status) error

	// UpdateReservationNotes rewrites the notes fields on a record.
	// Used by cancelled-booking reconciliation to append the
	// cancellation trail.
	UpdateReservationNotes(ctx context.Context, id, customerNotes, systemNotes string) error

	// DeleteReservation removes a record.
	DeleteReservation(ctx context.Context, id string) error
}
