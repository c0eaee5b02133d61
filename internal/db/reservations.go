package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stablebook/internal/booking"
	"stablebook/internal/metrics"
	"stablebook/internal/model"
)

// CreateReservation validates and inserts a reservation in one transaction.
// Client-side validation is advisory only; this is the final authority, so
// a conflicting reservation committed in the interim rejects the write.
// On a business rejection the returned Result carries the verdict and the
// error is nil.
func (db *DB) CreateReservation(ctx context.Context, r *model.Reservation, now time.Time) (booking.Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return booking.Result{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	facility, err := getFacilityTx(ctx, tx, r.FacilityID)
	if err != nil {
		return booking.Result{}, err
	}

	existing, err := blockingReservations(ctx, tx, r.FacilityID, r.Start, r.End, "")
	if err != nil {
		return booking.Result{}, err
	}

	req := booking.Request{Start: r.Start, End: r.End, HorseCount: len(r.HorseIDs)}
	result := booking.Validate(req, *facility, existing, now)
	if !result.Valid {
		metrics.IncValidationRejected(string(result.ViolatedRule))
		return result, nil
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	horseJSON, err := json.Marshal(r.HorseIDs)
	if err != nil {
		return booking.Result{}, fmt.Errorf("marshal horse ids: %w", err)
	}

	ts := now.UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, facility_id, user_id, horse_ids, start_time, end_time, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FacilityID, r.UserID, string(horseJSON),
		r.Start.UTC(), r.End.UTC(), r.Status, ts, ts,
	)
	if err != nil {
		return booking.Result{}, fmt.Errorf("insert reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return booking.Result{}, fmt.Errorf("commit reservation: %w", err)
	}

	r.CreatedAt, r.UpdatedAt = ts, ts
	metrics.IncReservationCreated(string(r.Status))
	return result, nil
}

// MoveReservation re-validates a reservation at a new interval, excluding
// the reservation itself from the conflict set, and persists the move.
func (db *DB) MoveReservation(ctx context.Context, id string, newStart, newEnd time.Time, now time.Time) (booking.Result, *model.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return booking.Result{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	r, err := getReservationTx(ctx, tx, id)
	if err != nil {
		return booking.Result{}, nil, err
	}
	if !r.Status.Blocks() {
		return booking.Result{}, nil, fmt.Errorf("reservation %s is %s and cannot be moved", id, r.Status)
	}

	facility, err := getFacilityTx(ctx, tx, r.FacilityID)
	if err != nil {
		return booking.Result{}, nil, err
	}

	existing, err := blockingReservations(ctx, tx, r.FacilityID, newStart, newEnd, "")
	if err != nil {
		return booking.Result{}, nil, err
	}

	req := booking.Request{
		Start:                newStart,
		End:                  newEnd,
		HorseCount:           len(r.HorseIDs),
		ExcludeReservationID: id,
	}
	result := booking.Validate(req, *facility, existing, now)
	if !result.Valid {
		metrics.IncValidationRejected(string(result.ViolatedRule))
		return result, nil, nil
	}

	ts := now.UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ?`,
		newStart.UTC(), newEnd.UTC(), ts, id,
	)
	if err != nil {
		return booking.Result{}, nil, fmt.Errorf("move reservation %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return booking.Result{}, nil, fmt.Errorf("commit move: %w", err)
	}

	r.Start, r.End, r.UpdatedAt = newStart, newEnd, ts
	return result, r, nil
}

// CheckConflicts runs the validator read-only, for advisory pre-checks.
func (db *DB) CheckConflicts(ctx context.Context, facilityID int64, req booking.Request, now time.Time) (booking.Result, error) {
	facility, err := db.GetFacility(ctx, facilityID)
	if err != nil {
		return booking.Result{}, err
	}
	existing, err := blockingReservations(ctx, db.DB, facilityID, req.Start, req.End, "")
	if err != nil {
		return booking.Result{}, err
	}
	return booking.Validate(req, *facility, existing, now), nil
}

// UpdateReservationStatus applies a lifecycle transition.
func (db *DB) UpdateReservationStatus(ctx context.Context, id string, next model.ReservationStatus, now time.Time) (*model.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	r, err := getReservationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !r.CanTransitionTo(next) {
		return nil, fmt.Errorf("reservation %s: illegal transition %s -> %s", id, r.Status, next)
	}

	ts := now.UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		next, ts, id,
	); err != nil {
		return nil, fmt.Errorf("update reservation %s status: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}

	r.Status, r.UpdatedAt = next, ts
	return r, nil
}

// GetReservation loads one reservation.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return getReservationTx(ctx, db.DB, id)
}

// ListReservations returns all reservations on a facility intersecting
// [from, to), regardless of status, ordered by start time.
func (db *DB) ListReservations(ctx context.Context, facilityID int64, from, to time.Time) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, facility_id, user_id, horse_ids, start_time, end_time, status, created_at, updated_at
		FROM reservations
		WHERE facility_id = ? AND end_time > ? AND start_time < ?
		ORDER BY start_time`,
		facilityID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// BlockingReservations returns the pending/confirmed reservations that
// intersect [from, to) on a facility, for slot generation.
func (db *DB) BlockingReservations(ctx context.Context, facilityID int64, from, to time.Time) ([]model.Reservation, error) {
	return blockingReservations(ctx, db.DB, facilityID, from, to, "")
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func blockingReservations(ctx context.Context, q querier, facilityID int64, from, to time.Time, excludeID string) ([]model.Reservation, error) {
	query := `
		SELECT id, facility_id, user_id, horse_ids, start_time, end_time, status, created_at, updated_at
		FROM reservations
		WHERE facility_id = ? AND status IN ('pending', 'confirmed')
		  AND end_time > ? AND start_time < ?`
	args := []any{facilityID, from.UTC(), to.UTC()}
	if excludeID != "" {
		query += " AND id != ?"
		args = append(args, excludeID)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load blocking reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func getReservationTx(ctx context.Context, q querier, id string) (*model.Reservation, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, facility_id, user_id, horse_ids, start_time, end_time, status, created_at, updated_at
		FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return r, err
}

func getFacilityTx(ctx context.Context, q querier, id int64) (*model.Facility, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, stable_id, name, type, status, timezone, availability_schedule,
		       planning_window_opens_days, planning_window_closes_days,
		       max_horses_per_reservation, min_slot_duration_minutes,
		       max_duration_minutes, created_at, updated_at
		FROM facilities WHERE id = ?`, id)
	return scanFacility(row)
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var horseJSON string
	err := row.Scan(
		&r.ID, &r.FacilityID, &r.UserID, &horseJSON,
		&r.Start, &r.End, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(horseJSON), &r.HorseIDs); err != nil {
		return nil, fmt.Errorf("reservation %s horse ids: %w", r.ID, err)
	}
	r.Start, r.End = r.Start.UTC(), r.End.UTC()
	return &r, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	var reservations []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}
