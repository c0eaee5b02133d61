package model

import (
	"fmt"
	"time"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
	StatusNoShow    ReservationStatus = "no_show"
)

// Blocks reports whether a reservation in this status participates in
// conflict checks. Cancelled reservations never conflict.
func (s ReservationStatus) Blocks() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Reservation is one booked interval on a facility. Owned by the requesting
// user; mutated by anyone with the facility-management permission.
type Reservation struct {
	ID         string            `json:"id"`
	FacilityID int64             `json:"facilityId"`
	UserID     int64             `json:"userId"`
	HorseIDs   []int64           `json:"horseIds"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	Status     ReservationStatus `json:"status"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// OverlapsInterval applies the half-open overlap test against [start, end).
// A reservation ending exactly when another starts does not overlap it.
func (r *Reservation) OverlapsInterval(start, end time.Time) bool {
	return r.Start.Before(end) && start.Before(r.End)
}

// Duration returns the booked length.
func (r *Reservation) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// validTransitions holds the allowed status moves. Completed, cancelled and
// no_show are terminal.
var validTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}

// CanTransitionTo reports whether the status move is legal.
func (r *Reservation) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range validTransitions[r.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Validate checks stored-state invariants.
func (r *Reservation) Validate() error {
	if r.FacilityID == 0 {
		return fmt.Errorf("reservation %s: facility id is required", r.ID)
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("reservation %s: end must be after start", r.ID)
	}
	switch r.Status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return nil
	default:
		return fmt.Errorf("reservation %s: unknown status %q", r.ID, r.Status)
	}
}
