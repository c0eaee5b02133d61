// Package booking decides whether a proposed or moved reservation is
// admissible: business rules, open hours and conflicts with existing
// bookings. Every function here is pure; persistence re-runs the same
// checks inside its write transaction before committing.
package booking

import (
	"time"

	"stablebook/internal/model"
)

// FindConflicts returns every existing reservation whose interval overlaps
// [start, end). Half-open semantics: a booking ending at 10:00 never
// conflicts with one starting at 10:00. excludeID lets a move validate
// against everything except the reservation being moved.
//
// The detector is status-agnostic; callers pass only reservations whose
// status blocks other bookings.
func FindConflicts(start, end time.Time, existing []model.Reservation, excludeID string) []model.Reservation {
	var conflicts []model.Reservation
	for _, r := range existing {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if r.OverlapsInterval(start, end) {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}
