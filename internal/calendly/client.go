// Package calendly adapts the Calendly v2 API to the scheduling-provider
// contract the pollers consume.  All provider-specific shapes (event
// URIs, invitee Q&A, cancellation payloads) stay inside this package;
// callers only ever see model.Booking and Cancellation values.
package calendly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

const (
	apiBaseURL     = "https://api.calendly.com"
	requestTimeout = 15 * time.Second
	pageSize       = 100

	// Window bounds for the event queries.  Future bookings beyond 60
	// days are not assignable yet; cancellations older than 30 days have
	// nothing left on the board to reconcile.
	futureHorizon  = 60 * 24 * time.Hour
	cancelLookback = 30 * 24 * time.Hour
)

// ErrNotConfigured is returned by every call when no usable API token was
// provided.  The pollers translate it into an empty feed.
var ErrNotConfigured = errors.New("calendly: no api token configured")

// Cancellation is a cancelled provider event the board may still hold.
type Cancellation struct {
	EventID      string
	EventURI     string
	CustomerName string
	PhoneNumber  string
	StartTime    time.Time
	Reason       string
	CanceledBy   string
}

// Provider is the scheduling-provider contract.  Implemented here by
// Client; the pollers depend only on this interface.
type Provider interface {
	// TodayBookings returns normalized active bookings starting today.
	TodayBookings(ctx context.Context) ([]model.Booking, error)
	// UpcomingBookings returns normalized active bookings starting
	// after today, up to the future horizon.
	UpcomingBookings(ctx context.Context) ([]model.Booking, error)
	// CancelledEvents returns cancelled events in the reconciliation
	// window.
	CancelledEvents(ctx context.Context) ([]Cancellation, error)
}

// Client talks to the Calendly API for a single account.
type Client struct {
	http   *resty.Client
	market *time.Location
	now    func() time.Time
	log    *zap.Logger

	mu      sync.Mutex
	userURI string // cached after the first users/me call
}

var _ Provider = (*Client)(nil)

// NewClient builds a Calendly client.  token may be empty or a
// placeholder; calls then fail with ErrNotConfigured.  market is the
// venue's timezone, used for day boundaries and the duration heuristic.
// now defaults to time.Now.
func NewClient(token string, market *time.Location, now func() time.Time, log *zap.Logger) *Client {
	if market == nil || log == nil {
		panic("nil dependency passed to calendly.NewClient")
	}
	if now == nil {
		now = time.Now
	}
	http := resty.New().
		SetBaseURL(apiBaseURL).
		SetAuthToken(token).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, market: market, now: now, log: log}
}

// ready reports whether a plausible token is present.  Real Calendly
// tokens are long; short values are treated as placeholders left in env
// files.
func (c *Client) ready() bool {
	return len(c.http.Token) > 20
}

type userResponse struct {
	Resource struct {
		URI string `json:"uri"`
	} `json:"resource"`
}

type event struct {
	URI          string    `json:"uri"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Cancellation *struct {
		CanceledBy string `json:"canceled_by"`
		Reason     string `json:"reason"`
	} `json:"cancellation"`
}

type eventList struct {
	Collection []event `json:"collection"`
	Pagination struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"pagination"`
}

type invitee struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Status              string `json:"status"`
	TextReminderNumber  string `json:"text_reminder_number"`
	QuestionsAndAnswers []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"questions_and_answers"`
}

type inviteeList struct {
	Collection []invitee `json:"collection"`
}

// TodayBookings lists active events from now until the venue-local end of
// day, normalized with invitee details.
func (c *Client) TodayBookings(ctx context.Context) ([]model.Booking, error) {
	now := c.now()
	local := now.In(c.market)
	dayEnd := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, c.market)
	return c.bookingsBetween(ctx, now, dayEnd)
}

// UpcomingBookings lists active events from the venue-local start of
// tomorrow out to the future horizon.
func (c *Client) UpcomingBookings(ctx context.Context) ([]model.Booking, error) {
	local := c.now().In(c.market)
	tomorrow := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.market).AddDate(0, 0, 1)
	return c.bookingsBetween(ctx, tomorrow, tomorrow.Add(futureHorizon))
}

func (c *Client) bookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	events, err := c.listEvents(ctx, from, to, "active")
	if err != nil {
		return nil, err
	}
	bookings := make([]model.Booking, 0, len(events))
	for _, ev := range events {
		inv, err := c.firstActiveInvitee(ctx, ev)
		if err != nil {
			// One broken invitee lookup must not sink the whole feed.
			c.log.Warn("invitee lookup failed",
				zap.String("event", eventID(ev.URI)),
				zap.Error(err))
			inv = nil
		}
		bookings = append(bookings, normalizeEvent(ev, inv, c.market))
	}
	return bookings, nil
}

// CancelledEvents lists cancelled events within the reconciliation
// window, with invitee identity attached where available.
func (c *Client) CancelledEvents(ctx context.Context) ([]Cancellation, error) {
	now := c.now()
	events, err := c.listEvents(ctx, now.Add(-cancelLookback), now.Add(futureHorizon), "canceled")
	if err != nil {
		return nil, err
	}
	out := make([]Cancellation, 0, len(events))
	for _, ev := range events {
		cn := Cancellation{
			EventID:   eventID(ev.URI),
			EventURI:  ev.URI,
			StartTime: ev.StartTime.UTC(),
		}
		if ev.Cancellation != nil {
			cn.Reason = ev.Cancellation.Reason
			cn.CanceledBy = ev.Cancellation.CanceledBy
		}
		if inv, err := c.anyInvitee(ctx, ev); err == nil && inv != nil {
			cn.CustomerName = inv.Name
			cn.PhoneNumber = answerMatching(inv, phoneHints)
			if cn.PhoneNumber == "" {
				cn.PhoneNumber = inv.TextReminderNumber
			}
		}
		out = append(out, cn)
	}
	return out, nil
}

func (c *Client) listEvents(ctx context.Context, from, to time.Time, status string) ([]event, error) {
	if !c.ready() {
		return nil, ErrNotConfigured
	}
	user, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	var out []event
	pageToken := ""
	for {
		var page eventList
		req := c.http.R().SetContext(ctx).SetResult(&page).
			SetQueryParams(map[string]string{
				"user":           user,
				"status":         status,
				"min_start_time": from.UTC().Format(time.RFC3339),
				"max_start_time": to.UTC().Format(time.RFC3339),
				"count":          fmt.Sprintf("%d", pageSize),
			})
		if pageToken != "" {
			req.SetQueryParam("page_token", pageToken)
		}
		resp, err := req.Get("/scheduled_events")
		if err != nil {
			return nil, fmt.Errorf("calendly: list events: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("calendly: list events: status %d: %s", resp.StatusCode(), resp.String())
		}
		out = append(out, page.Collection...)
		if page.Pagination.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.Pagination.NextPageToken
	}
}

func (c *Client) currentUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.userURI
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	var user userResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&user).Get("/users/me")
	if err != nil {
		return "", fmt.Errorf("calendly: current user: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("calendly: current user: status %d: %s", resp.StatusCode(), resp.String())
	}
	if user.Resource.URI == "" {
		return "", errors.New("calendly: current user response carried no uri")
	}
	c.mu.Lock()
	c.userURI = user.Resource.URI
	c.mu.Unlock()
	return user.Resource.URI, nil
}

// firstActiveInvitee returns the first non-cancelled invitee of an event,
// or nil when none exists.
func (c *Client) firstActiveInvitee(ctx context.Context, ev event) (*invitee, error) {
	list, err := c.invitees(ctx, ev)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Status != "canceled" {
			return &list[i], nil
		}
	}
	return nil, nil
}

func (c *Client) anyInvitee(ctx context.Context, ev event) (*invitee, error) {
	list, err := c.invitees(ctx, ev)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (c *Client) invitees(ctx context.Context, ev event) ([]invitee, error) {
	id := eventID(ev.URI)
	if id == "" {
		return nil, fmt.Errorf("calendly: event uri %q carries no id", ev.URI)
	}
	var list inviteeList
	resp, err := c.http.R().SetContext(ctx).SetResult(&list).
		Get("/scheduled_events/" + id + "/invitees")
	if err != nil {
		return nil, fmt.Errorf("calendly: list invitees: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("calendly: list invitees: status %d: %s", resp.StatusCode(), resp.String())
	}
	return list.Collection, nil
}

// eventID extracts the uuid tail of an event URI.  Fingerprints key on
// this tail, never the full URI, so both shapes match the same event.
func eventID(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
