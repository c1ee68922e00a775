package model

import "time"

// Booking is a request for a table prior to assignment.  Bookings arrive
// either from the scheduling provider feed or from manual staff entry and
// are normalized before they reach the assignment engine.
//
// Fields:
//  EventID        – scheduling-provider event id, empty for manual bookings.
//  StartTime      – requested window start (UTC).
//  EndTime        – requested window end (UTC), always after StartTime.
//  Duration       – window length in minutes, derived from the times.
//  Pax            – party size, clamped to 1..12 during normalization.
//  CustomerName   – optional customer name.
//  PhoneNumber    – optional contact number.
//  CustomerNotes  – optional notes captured at entry, persisted verbatim.
//  SpecialRequest – optional free-text request from the booking form.
//  Source         – origin to stamp onto the resulting reservation.
type Booking struct {
	EventID        string
	StartTime      time.Time
	EndTime        time.Time
	Duration       int
	Pax            int
	CustomerName   string
	PhoneNumber    string
	CustomerNotes  string
	SpecialRequest string
	Source         Source
}

// HasIdentity reports whether the booking carries anything that identifies
// the customer.  Bookings without identity fall back to time-only duplicate
// fingerprints.
func (b *Booking) HasIdentity() bool {
	return b.CustomerName != "" || b.PhoneNumber != ""
}
