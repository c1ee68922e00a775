// Package queue defines message payloads exchanged over the message broker
// and the background consumer that audits them.
package queue

// TableAssignedEvent is published when a reservation is committed to a
// table. It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the record store.
type TableAssignedEvent struct {
	ReservationID string `json:"reservation_id"`
	ExternalID    string `json:"external_id,omitempty"`
	TableID       string `json:"table_id"`
	TableCapacity int    `json:"table_capacity"`
	Source        string `json:"source"`
	Pax           int    `json:"pax"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	CustomerName  string `json:"customer_name,omitempty"`
	AssignedAt    string `json:"assigned_at"`
}
