package model

import "time"

// Source identifies how a reservation entered the system.
type Source string

const (
	SourceWalkIn    Source = "walk-in"
	SourcePhoneCall Source = "phone-call"
	SourceCalendly  Source = "calendly"
)

// Status is the lifecycle state of a reservation.  The normal path is
// reserved -> arrived -> paid; no-show and cancelled are terminal.
type Status string

const (
	StatusReserved  Status = "reserved"
	StatusArrived   Status = "arrived"
	StatusPaid      Status = "paid"
	StatusNoShow    Status = "no-show"
	StatusCancelled Status = "cancelled"
)

// Reservation is a booking bound to a specific table and time window.
//
// Fields:
//  ID             – local identifier, generated when the reservation is built.
//  TableID        – the table this reservation occupies.
//  Source         – origin of the booking (walk-in, phone-call, calendly).
//  Status         – lifecycle state.
//  Pax            – party size.
//  StartTime      – beginning of the occupied window (UTC).
//  EndTime        – end of the occupied window, always StartTime + Duration.
//  Duration       – occupied window length in minutes.
//  CustomerName   – optional customer name.
//  PhoneNumber    – optional contact number.
//  CustomerNotes  – free-text notes entered by staff or the customer.
//  SpecialRequest – request captured from the scheduling provider form.
//  SystemNotes    – machine-written notes (assignment trail, duration tag).
//  ExternalID     – record-store record id once persisted.
//  SourceEventID  – scheduling-provider event id for externally sourced
//                   bookings, used by duplicate reconciliation.
type Reservation struct {
	ID             string    `json:"id"`
	TableID        string    `json:"tableId"`
	Source         Source    `json:"source"`
	Status         Status    `json:"status"`
	Pax            int       `json:"pax"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Duration       int       `json:"duration"`
	CustomerName   string    `json:"customerName,omitempty"`
	PhoneNumber    string    `json:"phoneNumber,omitempty"`
	CustomerNotes  string    `json:"customerNotes,omitempty"`
	SpecialRequest string    `json:"specialRequest,omitempty"`
	SystemNotes    string    `json:"systemNotes,omitempty"`
	ExternalID     string    `json:"externalId,omitempty"`
	SourceEventID  string    `json:"sourceEventId,omitempty"`
}

// HasValidWindow reports whether the reservation carries a usable time
// window.  Records synced from the store occasionally arrive with missing
// or inverted times; such entries are skipped by the conflict checker
// rather than treated as conflicting.
func (r *Reservation) HasValidWindow() bool {
	return !r.StartTime.IsZero() && !r.EndTime.IsZero() && r.StartTime.Before(r.EndTime)
}
