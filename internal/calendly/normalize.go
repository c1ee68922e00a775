package calendly

import (
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

const (
	defaultPax = 2
	maxPax     = 12

	shortSeating = 60 // minutes, lunch and early-evening slots
	longSeating  = 90 // minutes, dinner service
)

// Question hints.  Event types differ in how they phrase the booking
// form, so answers are matched by keyword rather than exact question
// text.
var (
	phoneHints = []string{"phone", "number", "contact"}
	paxHints   = []string{"pax", "guest", "people", "party", "size", "how many"}
	noteHints  = []string{"special", "request", "note", "diet", "allerg", "occasion"}
)

// normalizeEvent converts a provider event plus its invitee into the
// engine's booking shape.  inv may be nil when the invitee lookup failed
// or the event has none; identity fields are then left empty and the
// orchestrator falls back to its placeholder handling.
func normalizeEvent(ev event, inv *invitee, market *time.Location) model.Booking {
	b := model.Booking{
		EventID:   eventID(ev.URI),
		StartTime: ev.StartTime.UTC(),
		EndTime:   ev.EndTime.UTC(),
		Pax:       defaultPax,
		Source:    model.SourceCalendly,
	}
	if inv != nil {
		b.CustomerName = strings.TrimSpace(inv.Name)
		b.PhoneNumber = answerMatching(inv, phoneHints)
		if b.PhoneNumber == "" {
			b.PhoneNumber = strings.TrimSpace(inv.TextReminderNumber)
		}
		b.SpecialRequest = answerMatching(inv, noteHints)
		if pax, ok := paxFromAnswers(inv); ok {
			b.Pax = pax
		}
	}
	b.Duration = seatingDuration(ev, market)
	if b.EndTime.IsZero() || !b.StartTime.Before(b.EndTime) {
		b.EndTime = b.StartTime.Add(time.Duration(b.Duration) * time.Minute)
	}
	return b
}

// seatingDuration prefers the event's own window; events whose end time
// is missing or degenerate fall back to the service-period heuristic:
// slots before 17:30 venue-local are short seatings, dinner slots long.
func seatingDuration(ev event, market *time.Location) int {
	if !ev.EndTime.IsZero() && ev.StartTime.Before(ev.EndTime) {
		return int(ev.EndTime.Sub(ev.StartTime) / time.Minute)
	}
	local := ev.StartTime.In(market)
	if local.Hour() < 17 || (local.Hour() == 17 && local.Minute() < 30) {
		return shortSeating
	}
	return longSeating
}

// answerMatching returns the first non-empty answer whose question
// contains one of the hints.
func answerMatching(inv *invitee, hints []string) string {
	for _, qa := range inv.QuestionsAndAnswers {
		q := strings.ToLower(qa.Question)
		for _, h := range hints {
			if strings.Contains(q, h) {
				if a := strings.TrimSpace(qa.Answer); a != "" {
					return a
				}
			}
		}
	}
	return ""
}

// paxFromAnswers parses a party size out of the Q&A.  Answers like
// "4 people" or "Party of 6" work; values outside 1..12 are clamped.
func paxFromAnswers(inv *invitee) (int, bool) {
	raw := answerMatching(inv, paxHints)
	if raw == "" {
		return 0, false
	}
	num := ""
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			num += string(r)
		} else if num != "" {
			break
		}
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, false
	}
	if n > maxPax {
		n = maxPax
	}
	return n, true
}
