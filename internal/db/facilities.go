package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stablebook/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateFacility normalizes, validates and inserts a facility, assigning
// its id.
func (db *DB) CreateFacility(ctx context.Context, f *model.Facility) error {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return err
	}

	scheduleJSON, err := json.Marshal(f.AvailabilitySchedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `
		INSERT INTO facilities (
			stable_id, name, type, status, timezone, availability_schedule,
			planning_window_opens_days, planning_window_closes_days,
			max_horses_per_reservation, min_slot_duration_minutes,
			max_duration_minutes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.StableID, f.Name, f.Type, f.Status, f.Timezone, string(scheduleJSON),
		f.PlanningWindowOpensDays, f.PlanningWindowClosesDays,
		f.MaxHorsesPerReservation, f.MinSlotDurationMinutes,
		f.MaxDurationMinutes, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert facility: %w", err)
	}
	f.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("facility id: %w", err)
	}
	f.CreatedAt, f.UpdatedAt = now, now
	return nil
}

// UpdateFacility replaces the stored facility, including its schedule.
func (db *DB) UpdateFacility(ctx context.Context, f *model.Facility) error {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return err
	}

	scheduleJSON, err := json.Marshal(f.AvailabilitySchedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `
		UPDATE facilities SET
			stable_id = ?, name = ?, type = ?, status = ?, timezone = ?,
			availability_schedule = ?,
			planning_window_opens_days = ?, planning_window_closes_days = ?,
			max_horses_per_reservation = ?, min_slot_duration_minutes = ?,
			max_duration_minutes = ?, updated_at = ?
		WHERE id = ?`,
		f.StableID, f.Name, f.Type, f.Status, f.Timezone, string(scheduleJSON),
		f.PlanningWindowOpensDays, f.PlanningWindowClosesDays,
		f.MaxHorsesPerReservation, f.MinSlotDurationMinutes,
		f.MaxDurationMinutes, now, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update facility %d: %w", f.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	f.UpdatedAt = now
	return nil
}

// GetFacility loads one facility with its schedule normalized.
func (db *DB) GetFacility(ctx context.Context, id int64) (*model.Facility, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, stable_id, name, type, status, timezone, availability_schedule,
		       planning_window_opens_days, planning_window_closes_days,
		       max_horses_per_reservation, min_slot_duration_minutes,
		       max_duration_minutes, created_at, updated_at
		FROM facilities WHERE id = ?`, id)
	return scanFacility(row)
}

// ListFacilities returns facilities for a stable; stableID 0 lists all.
func (db *DB) ListFacilities(ctx context.Context, stableID int64) ([]model.Facility, error) {
	query := `
		SELECT id, stable_id, name, type, status, timezone, availability_schedule,
		       planning_window_opens_days, planning_window_closes_days,
		       max_horses_per_reservation, min_slot_duration_minutes,
		       max_duration_minutes, created_at, updated_at
		FROM facilities`
	args := []any{}
	if stableID != 0 {
		query += " WHERE stable_id = ?"
		args = append(args, stableID)
	}
	query += " ORDER BY name"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, *f)
	}
	return facilities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFacility(row rowScanner) (*model.Facility, error) {
	var f model.Facility
	var scheduleJSON string
	err := row.Scan(
		&f.ID, &f.StableID, &f.Name, &f.Type, &f.Status, &f.Timezone, &scheduleJSON,
		&f.PlanningWindowOpensDays, &f.PlanningWindowClosesDays,
		&f.MaxHorsesPerReservation, &f.MinSlotDurationMinutes,
		&f.MaxDurationMinutes, &f.CreatedAt, &f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan facility: %w", err)
	}
	if err := json.Unmarshal([]byte(scheduleJSON), &f.AvailabilitySchedule); err != nil {
		return nil, fmt.Errorf("facility %d schedule: %w", f.ID, err)
	}
	f.AvailabilitySchedule.Normalize()
	return &f, nil
}
