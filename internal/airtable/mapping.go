package airtable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

// Column names in the reservations table.  The store schema predates this
// service and uses display-style names; everything crossing the wire goes
// through the maps in this file so the rest of the codebase only sees
// model types.
const (
	fieldTable         = "Table"
	fieldType          = "Reservation Type"
	fieldStatus        = "Status"
	fieldPax           = "Pax"
	fieldDateTime      = "DateandTime"
	fieldDuration      = "Duration"
	fieldName          = "Name"
	fieldPhone         = "PH Number"
	fieldNotes         = "Notes"
	fieldCustomerNotes = "Customer Notes"
	fieldSystemNotes   = "System Notes"
	fieldReservationID = "Reservation_ID"
)

var (
	customerInNotes = regexp.MustCompile(`Customer:\s*([^\n]+)`)
	durationInNotes = regexp.MustCompile(`Duration:\s*(\d+)\s*minutes`)
)

// record is the raw Airtable record envelope.
type record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// expandRecord converts one raw record into logical reservations, one per
// table id.  The Table column may hold a comma-joined list when a single
// booking spans several physical tables.  Records without a table are
// dropped; records with unparseable times come through with a zero
// StartTime so callers can decide how to treat them.
func expandRecord(rec record) []store.Record {
	tableField := str(rec.Fields[fieldTable])
	if tableField == "" {
		return nil
	}
	base := store.Record{
		ID:            rec.ID,
		ReservationID: str(rec.Fields[fieldReservationID]),
		Source:        sourceFromType(str(rec.Fields[fieldType])),
		Status:        statusFromDisplay(str(rec.Fields[fieldStatus])),
		Pax:           intFrom(rec.Fields[fieldPax]),
		PhoneNumber:   str(rec.Fields[fieldPhone]),
		CustomerNotes: str(rec.Fields[fieldCustomerNotes]),
		SystemNotes:   str(rec.Fields[fieldSystemNotes]),
	}
	if ts := str(rec.Fields[fieldDateTime]); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			base.StartTime = t.UTC()
		}
	}
	base.Duration = intFrom(rec.Fields[fieldDuration])
	if base.Duration == 0 {
		if m := durationInNotes.FindStringSubmatch(base.SystemNotes); m != nil {
			base.Duration, _ = strconv.Atoi(m[1])
		}
	}
	base.CustomerName = str(rec.Fields[fieldName])
	if base.CustomerName == "" {
		if m := customerInNotes.FindStringSubmatch(base.CustomerNotes); m != nil {
			base.CustomerName = strings.TrimSpace(m[1])
		}
	}

	ids := strings.Split(tableField, ",")
	out := make([]store.Record, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		r := base
		r.TableID = id
		out = append(out, r)
	}
	return out
}

// createFields builds the write-side field map for a new reservation.
func createFields(f store.Fields) map[string]any {
	fields := map[string]any{
		fieldTable:    f.TableID,
		fieldType:     typeToDisplay(f.Source),
		fieldStatus:   statusToDisplay(f.Status),
		fieldDateTime: f.StartTime.UTC().Format(time.RFC3339),
	}
	if f.Pax > 0 {
		// Pax is a single-line-text column in the store, not a number.
		fields[fieldPax] = strconv.Itoa(f.Pax)
	}
	if f.Duration > 0 {
		fields[fieldDuration] = strconv.Itoa(f.Duration)
	}
	if f.CustomerName != "" {
		fields[fieldName] = f.CustomerName
	}
	if f.PhoneNumber != "" {
		fields[fieldPhone] = f.PhoneNumber
	}
	if f.SpecialRequest != "" {
		fields[fieldNotes] = f.SpecialRequest
	}
	if notes := customerNotes(f); notes != "" {
		fields[fieldCustomerNotes] = notes
	}
	if sys := systemNotes(f); sys != "" {
		fields[fieldSystemNotes] = sys
	}
	return fields
}

// basicFields is the reduced field set used when the store rejects one of
// the optional columns (schema drift happens; the reservation still has
// to land).
func basicFields(f store.Fields) map[string]any {
	fields := map[string]any{
		fieldTable:    f.TableID,
		fieldType:     typeToDisplay(f.Source),
		fieldStatus:   statusToDisplay(f.Status),
		fieldDateTime: f.StartTime.UTC().Format(time.RFC3339),
	}
	if notes := customerNotes(f); notes != "" {
		fields[fieldCustomerNotes] = notes
	}
	return fields
}

// customerNotes keeps the "Customer: <name>" convention so the name
// survives even in deployments where the Name column does not exist.
func customerNotes(f store.Fields) string {
	var parts []string
	if f.CustomerName != "" {
		parts = append(parts, "Customer: "+f.CustomerName)
	}
	if f.CustomerNotes != "" {
		parts = append(parts, f.CustomerNotes)
	}
	return strings.Join(parts, "\n")
}

func systemNotes(f store.Fields) string {
	var parts []string
	if f.Duration > 0 {
		until := f.StartTime.Add(time.Duration(f.Duration) * time.Minute)
		parts = append(parts, fmt.Sprintf("Duration: %d minutes (until %s)", f.Duration, until.UTC().Format("15:04")))
	}
	if f.SystemNotes != "" {
		parts = append(parts, f.SystemNotes)
	}
	return strings.Join(parts, "\n")
}

// statusToDisplay maps the local status enum onto the store's display
// strings.
func statusToDisplay(s model.Status) string {
	switch s {
	case model.StatusArrived:
		return "Arrived"
	case model.StatusPaid:
		return "Paid"
	case model.StatusNoShow:
		return "No Show"
	case model.StatusCancelled:
		return "Cancelled"
	default:
		return "Reserved"
	}
}

// statusFromDisplay maps the store's display strings (several historical
// spellings included) back to the local enum.
func statusFromDisplay(s string) model.Status {
	switch strings.ToLower(s) {
	case "arrived":
		return model.StatusArrived
	case "paid":
		return model.StatusPaid
	case "no show", "no-show":
		return model.StatusNoShow
	case "cancelled", "canceled":
		return model.StatusCancelled
	case "floor plan", "walk in":
		// Walk-ins were historically recorded by type in the status
		// column; they are on the premises, so arrived.
		return model.StatusArrived
	default:
		return model.StatusReserved
	}
}

func typeToDisplay(s model.Source) string {
	switch s {
	case model.SourcePhoneCall:
		return "Phone call"
	case model.SourceCalendly:
		return "Calendly"
	default:
		return "Floor Plan"
	}
}

func sourceFromType(s string) model.Source {
	switch strings.ToLower(s) {
	case "calendly":
		return model.SourceCalendly
	case "phone call", "voice agent":
		return model.SourcePhoneCall
	default:
		return model.SourceWalkIn
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// intFrom tolerates both numeric and string columns; the store has
// changed the Pax column type across schema revisions.
func intFrom(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	default:
		return 0
	}
}
