package model

import (
	"fmt"
	"time"
)

// FacilityStatus describes whether a facility currently accepts bookings.
type FacilityStatus string

const (
	FacilityActive      FacilityStatus = "active"
	FacilityMaintenance FacilityStatus = "maintenance"
	FacilityInactive    FacilityStatus = "inactive"
)

// Facility is a bookable physical resource: an arena, wash stall, round pen.
// The embedded availability schedule is owned by the stable administrator
// and mutated only through facility updates.
type Facility struct {
	ID                       int64                `json:"id"`
	StableID                 int64                `json:"stableId"`
	Name                     string               `json:"name"`
	Type                     string               `json:"type"`
	Status                   FacilityStatus       `json:"status"`
	Timezone                 string               `json:"timezone"`
	AvailabilitySchedule     AvailabilitySchedule `json:"availabilitySchedule"`
	PlanningWindowOpensDays  int                  `json:"planningWindowOpensDays"`
	PlanningWindowClosesDays int                  `json:"planningWindowClosesDays"`
	MaxHorsesPerReservation  int                  `json:"maxHorsesPerReservation"`
	MinSlotDurationMinutes   int                  `json:"minSlotDurationMinutes"`
	MaxDurationMinutes       int                  `json:"maxDurationMinutes"`
	CreatedAt                time.Time            `json:"createdAt"`
	UpdatedAt                time.Time            `json:"updatedAt"`
}

// Location resolves the facility timezone, defaulting to UTC when unset.
func (f *Facility) Location() (*time.Location, error) {
	if f.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, fmt.Errorf("facility %d timezone %q: %w", f.ID, f.Timezone, err)
	}
	return loc, nil
}

// Normalize applies defaults for omitted wire fields and normalizes the
// embedded schedule so downstream code never null-coalesces.
func (f *Facility) Normalize() {
	if f.Status == "" {
		f.Status = FacilityActive
	}
	if f.MinSlotDurationMinutes <= 0 {
		f.MinSlotDurationMinutes = 30
	}
	if f.MaxDurationMinutes <= 0 {
		f.MaxDurationMinutes = 240
	}
	if f.MaxHorsesPerReservation <= 0 {
		f.MaxHorsesPerReservation = 1
	}
	if f.PlanningWindowOpensDays <= 0 {
		f.PlanningWindowOpensDays = 30
	}
	if f.PlanningWindowClosesDays < 0 {
		f.PlanningWindowClosesDays = 0
	}
	f.AvailabilitySchedule.Normalize()
}

// Validate checks stored-state invariants.
func (f *Facility) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("facility name is required")
	}
	if f.MinSlotDurationMinutes > f.MaxDurationMinutes {
		return fmt.Errorf("facility %d: min slot duration %d exceeds max duration %d",
			f.ID, f.MinSlotDurationMinutes, f.MaxDurationMinutes)
	}
	if _, err := f.Location(); err != nil {
		return err
	}
	return f.AvailabilitySchedule.Validate()
}
