package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/floor-plan-reservations/internal/model"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// MySQLStore implements RecordStore on a local MySQL database.  It is the
// backend for deployments that do not use the hosted record store; the
// reservations table mirrors the Record shape one row per record, with
// table ids comma-joined like the hosted store does.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore constructs a MySQLStore with the given DB handle.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	if db == nil {
		panic("nil db passed to NewMySQLStore")
	}
	return &MySQLStore{db: db}
}

var _ RecordStore = (*MySQLStore)(nil)

// ListReservations retrieves all reservation rows ordered by start time,
// expanded one Record per table id.
func (s *MySQLStore) ListReservations(ctx context.Context) ([]Record, error) {
	const q = `SELECT id, reservation_id, table_ids, source, status, pax,
	                  start_time, duration_min, customer_name, phone_number,
	                  customer_notes, system_notes
	           FROM reservations
	           ORDER BY start_time`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r        Record
			tableIDs string
			source   string
			status   string
			start    sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.ReservationID, &tableIDs, &source, &status,
			&r.Pax, &start, &r.Duration, &r.CustomerName, &r.PhoneNumber,
			&r.CustomerNotes, &r.SystemNotes); err != nil {
			return nil, err
		}
		r.Source = model.Source(source)
		r.Status = model.Status(status)
		if start.Valid {
			r.StartTime = start.Time.UTC()
		}
		for _, id := range strings.Split(tableIDs, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			rec := r
			rec.TableID = id
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

// CreateReservation inserts a reservation row.  Row ids are generated
// here rather than by AUTO_INCREMENT so they stay interchangeable with
// the hosted store's opaque record ids.
func (s *MySQLStore) CreateReservation(ctx context.Context, f Fields) (Record, error) {
	id := uuid.NewString()
	notes := f.CustomerNotes
	if f.CustomerName != "" {
		// Same convention as the hosted store: the name also lives in the
		// notes so it survives exports that drop the name column.
		prefix := "Customer: " + f.CustomerName
		if notes != "" {
			notes = prefix + "\n" + notes
		} else {
			notes = prefix
		}
	}
	const q = `INSERT INTO reservations
	           (id, reservation_id, table_ids, source, status, pax,
	            start_time, duration_min, customer_name, phone_number,
	            customer_notes, special_request, system_notes)
	           VALUES (?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, id, f.TableID, string(f.Source), string(f.Status),
		f.Pax, f.StartTime.UTC(), f.Duration, f.CustomerName, f.PhoneNumber,
		notes, f.SpecialRequest, f.SystemNotes)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:            id,
		TableID:       f.TableID,
		Source:        f.Source,
		Status:        f.Status,
		Pax:           f.Pax,
		StartTime:     f.StartTime.UTC(),
		Duration:      f.Duration,
		CustomerName:  f.CustomerName,
		PhoneNumber:   f.PhoneNumber,
		CustomerNotes: notes,
		SystemNotes:   f.SystemNotes,
	}, nil
}

// UpdateReservationStatus updates the status column.  No-shows are
// deleted, matching the board's convention that a no-show table is free.
func (s *MySQLStore) UpdateReservationStatus(ctx context.Context, id string, status model.Status) error {
	if status == model.StatusNoShow {
		return s.DeleteReservation(ctx, id)
	}
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// UpdateReservationNotes rewrites both notes columns.
func (s *MySQLStore) UpdateReservationNotes(ctx context.Context, id, customerNotes, systemNotes string) error {
	const q = `UPDATE reservations SET customer_notes = ?, system_notes = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, customerNotes, systemNotes, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// DeleteReservation removes a reservation row.
func (s *MySQLStore) DeleteReservation(ctx context.Context, id string) error {
	const q = `DELETE FROM reservations WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reservation record %s not found", id)
	}
	return nil
}
