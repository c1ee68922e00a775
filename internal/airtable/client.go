// Package airtable implements store.RecordStore on top of the Airtable
// REST API.  The base holds one reservations table; every read goes
// through a short-lived in-process cache so the pollers and HTTP handlers
// can hit the store freely without burning the rate limit.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

const (
	apiBaseURL     = "https://api.airtable.com/v0"
	requestTimeout = 15 * time.Second

	// cacheTTL bounds staleness of reads.  Poll cycles run minutes apart;
	// 30s keeps bursts of handler traffic off the API while staying well
	// inside one cycle.
	cacheTTL = 30 * time.Second

	// mirrorKey / mirrorTTL: the latest record list is mirrored into
	// Redis as a JSON snapshot for external consumers (dashboards, the
	// audit worker).  The mirror is advisory and never read back here.
	mirrorKey = "floorplan:records"
	mirrorTTL = time.Minute
)

// Client talks to one Airtable base/table pair.  It caches list results
// and coalesces concurrent fetches into a single API call.
type Client struct {
	http  *resty.Client
	table string
	log   *zap.Logger
	cache *redis.Client // optional mirror, may be nil

	mu        sync.Mutex
	cached    []store.Record
	fetchedAt time.Time
	pending   chan struct{} // non-nil while a fetch is in flight
}

var _ store.RecordStore = (*Client)(nil)

// NewClient builds an Airtable client for the given base and table.
// cache may be nil to disable the Redis mirror.
func NewClient(apiKey, baseID, table string, cache *redis.Client, log *zap.Logger) *Client {
	if apiKey == "" || baseID == "" || table == "" {
		panic("airtable client requires api key, base id and table name")
	}
	if log == nil {
		panic("nil logger passed to airtable.NewClient")
	}
	http := resty.New().
		SetBaseURL(apiBaseURL+"/"+baseID).
		SetAuthToken(apiKey).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, table: table, log: log, cache: cache}
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset"`
}

// ListReservations returns every reservation, expanded one Record per
// table id.  Results within cacheTTL of the last fetch are served from
// memory; concurrent callers behind a cold cache share one API call.
func (c *Client) ListReservations(ctx context.Context) ([]store.Record, error) {
	for {
		c.mu.Lock()
		if c.cached != nil && time.Since(c.fetchedAt) < cacheTTL {
			out := append([]store.Record(nil), c.cached...)
			c.mu.Unlock()
			return out, nil
		}
		if c.pending != nil {
			wait := c.pending
			c.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		done := make(chan struct{})
		c.pending = done
		c.mu.Unlock()

		recs, err := c.fetchAll(ctx)

		c.mu.Lock()
		c.pending = nil
		close(done)
		if err != nil {
			c.cached, c.fetchedAt = nil, time.Time{}
			c.mu.Unlock()
			return nil, err
		}
		c.cached = recs
		c.fetchedAt = time.Now()
		out := append([]store.Record(nil), recs...)
		c.mu.Unlock()

		c.mirror(ctx, recs)
		return out, nil
	}
}

func (c *Client) fetchAll(ctx context.Context) ([]store.Record, error) {
	var out []store.Record
	offset := ""
	for {
		var page listResponse
		req := c.http.R().SetContext(ctx).SetResult(&page)
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}
		resp, err := req.Get("/" + c.table)
		if err != nil {
			return nil, fmt.Errorf("airtable: list reservations: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("airtable: list reservations: status %d: %s", resp.StatusCode(), resp.String())
		}
		for _, rec := range page.Records {
			out = append(out, expandRecord(rec)...)
		}
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

// CreateReservation writes a new record.  When the base rejects an
// optional column (schema drift across deployments) the write is retried
// once with the basic field set so the reservation still lands.
func (c *Client) CreateReservation(ctx context.Context, f store.Fields) (store.Record, error) {
	rec, err := c.create(ctx, createFields(f))
	if err != nil && fieldRejected(err) {
		c.log.Warn("store rejected optional fields, retrying with basic set",
			zap.String("table_id", f.TableID),
			zap.Error(err))
		rec, err = c.create(ctx, basicFields(f))
	}
	c.invalidate()
	if err != nil {
		return store.Record{}, err
	}
	expanded := expandRecord(rec)
	if len(expanded) == 0 {
		return store.Record{ID: rec.ID, TableID: f.TableID}, nil
	}
	return expanded[0], nil
}

func (c *Client) create(ctx context.Context, fields map[string]any) (record, error) {
	var created record
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"fields": fields}).
		SetResult(&created).
		Post("/" + c.table)
	if err != nil {
		return record{}, fmt.Errorf("airtable: create reservation: %w", err)
	}
	if resp.IsError() {
		return record{}, fmt.Errorf("airtable: create reservation: status %d: %s", resp.StatusCode(), resp.String())
	}
	return created, nil
}

// UpdateReservationStatus writes the display value for status.  No-shows
// are deleted instead of updated; the board treats a no-show table as
// free again.
func (c *Client) UpdateReservationStatus(ctx context.Context, id string, status model.Status) error {
	if status == model.StatusNoShow {
		return c.DeleteReservation(ctx, id)
	}
	return c.patch(ctx, id, map[string]any{fieldStatus: statusToDisplay(status)})
}

// UpdateReservationNotes rewrites both notes columns on a record.
func (c *Client) UpdateReservationNotes(ctx context.Context, id, customerNotes, systemNotes string) error {
	return c.patch(ctx, id, map[string]any{
		fieldCustomerNotes: customerNotes,
		fieldSystemNotes:   systemNotes,
	})
}

func (c *Client) patch(ctx context.Context, id string, fields map[string]any) error {
	defer c.invalidate()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"fields": fields}).
		Patch("/" + c.table + "/" + id)
	if err != nil {
		return fmt.Errorf("airtable: update record %s: %w", id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("airtable: update record %s: status %d: %s", id, resp.StatusCode(), resp.String())
	}
	return nil
}

// DeleteReservation removes a record from the base.
func (c *Client) DeleteReservation(ctx context.Context, id string) error {
	defer c.invalidate()
	resp, err := c.http.R().SetContext(ctx).Delete("/" + c.table + "/" + id)
	if err != nil {
		return fmt.Errorf("airtable: delete record %s: %w", id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("airtable: delete record %s: status %d: %s", id, resp.StatusCode(), resp.String())
	}
	return nil
}

// invalidate voids the read cache after any write so the next list
// reflects the store's own coercions and computed fields.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.cached, c.fetchedAt = nil, time.Time{}
	c.mu.Unlock()
}

func (c *Client) mirror(ctx context.Context, recs []store.Record) {
	if c.cache == nil {
		return
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, mirrorKey, payload, mirrorTTL).Err(); err != nil {
		c.log.Debug("record mirror write failed", zap.Error(err))
	}
}

// fieldRejected recognizes the API errors that mean a column in the
// payload does not exist or carries an unlisted select option.
func fieldRejected(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNKNOWN_FIELD_NAME") ||
		strings.Contains(msg, "INVALID_MULTIPLE_CHOICE_OPTIONS") ||
		strings.Contains(msg, "INVALID_VALUE_FOR_COLUMN")
}
