package model

// TableType classifies where a table sits on the floor plan.  The type
// carries no capacity semantics; it only matters for selection fallback
// ordering (indoor tables are preferred over outdoor ones).
type TableType string

const (
	TableTypeBar      TableType = "bar"      // bar counter seating
	TableTypeStandard TableType = "standard" // regular dining table
	TableTypeOutdoor  TableType = "outdoor"  // outdoor seating
	TableTypeLoft     TableType = "loft"     // loft area seating
)

// Table represents a physical table on the restaurant floor plan.
// Tables are loaded once at startup from the layout configuration and
// their identity fields never change; only the Reservations slice is
// mutated at runtime.
//
// Fields:
//  ID           – short alphanumeric code (section letter + index, e.g. "C5").
//  Capacity     – maximum party size the table seats.
//  Type         – placement classification (bar, standard, outdoor, loft).
//  Reservations – reservations currently bound to this table, kept sorted
//                 by start time by the components that append to it.
type Table struct {
	ID           string        `json:"id"`
	Capacity     int           `json:"capacity"`
	Type         TableType     `json:"type"`
	Reservations []Reservation `json:"reservations"`
}

// IsOutdoor reports whether the table is outdoor seating.  Used by the
// selector fallback, which prefers indoor tables at equal capacity.
func (t *Table) IsOutdoor() bool {
	return t.Type == TableTypeOutdoor
}
