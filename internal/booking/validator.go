package booking

import (
	"fmt"
	"time"

	"stablebook/internal/model"
	"stablebook/internal/schedule"
)

// RuleKind tags which business rule rejected a booking.
type RuleKind string

const (
	RuleDuration      RuleKind = "duration"
	RuleBookingWindow RuleKind = "booking_window"
	RuleHorseLimit    RuleKind = "horse_limit"
	RuleBusinessHours RuleKind = "business_hours"
	RuleConflict      RuleKind = "conflict"
)

// Request is a proposed new or moved reservation interval.
type Request struct {
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	HorseCount           int       `json:"horseCount"`
	ExcludeReservationID string    `json:"excludeReservationId,omitempty"`
}

// Result is the verdict of one validation call. It is never partially
// filled: either Valid is true and everything else is zero, or Valid is
// false with the violated rule and message set.
type Result struct {
	Valid        bool                `json:"valid"`
	Conflicts    []model.Reservation `json:"conflicts,omitempty"`
	ViolatedRule RuleKind            `json:"violatedRule,omitempty"`
	Message      string              `json:"message,omitempty"`
}

func reject(rule RuleKind, msg string) Result {
	return Result{ViolatedRule: rule, Message: msg}
}

// Validate runs the fixed check sequence over a proposed reservation: the
// first failing rule wins and later checks do not run. Moving a reservation
// is the same call with its own id in ExcludeReservationID.
//
// existing must hold only reservations that block bookings (pending or
// confirmed); cancelled ones are filtered out defensively. Validate never
// returns an error for a rejected booking; a facility with a corrupted
// timezone is a data error and panics.
func Validate(req Request, fac model.Facility, existing []model.Reservation, now time.Time) Result {
	// 1. Duration bounds.
	dur := req.End.Sub(req.Start)
	minDur := time.Duration(fac.MinSlotDurationMinutes) * time.Minute
	maxDur := time.Duration(fac.MaxDurationMinutes) * time.Minute
	if dur <= 0 || dur < minDur {
		return reject(RuleDuration,
			fmt.Sprintf("reservation must be at least %d minutes", fac.MinSlotDurationMinutes))
	}
	if dur > maxDur {
		return reject(RuleDuration,
			fmt.Sprintf("reservation must be at most %d minutes", fac.MaxDurationMinutes))
	}

	// 2. Planning window, measured from now.
	closes := now.Add(time.Duration(fac.PlanningWindowClosesDays) * 24 * time.Hour)
	opens := now.Add(time.Duration(fac.PlanningWindowOpensDays) * 24 * time.Hour)
	if req.Start.Before(closes) {
		return reject(RuleBookingWindow,
			fmt.Sprintf("bookings close %d days before the start time", fac.PlanningWindowClosesDays))
	}
	if req.Start.After(opens) {
		return reject(RuleBookingWindow,
			fmt.Sprintf("bookings open at most %d days in advance", fac.PlanningWindowOpensDays))
	}

	// 3. Horse cap.
	if req.HorseCount > fac.MaxHorsesPerReservation {
		return reject(RuleHorseLimit,
			fmt.Sprintf("at most %d horses per reservation", fac.MaxHorsesPerReservation))
	}

	// 4. Open hours on the start's calendar date.
	if !withinOpenHours(req, fac) {
		return reject(RuleBusinessHours, "requested time is outside the facility's open hours")
	}

	// 5. Conflicts with existing bookings.
	blocking := existing[:0:0]
	for _, r := range existing {
		if r.Status.Blocks() {
			blocking = append(blocking, r)
		}
	}
	if conflicts := FindConflicts(req.Start, req.End, blocking, req.ExcludeReservationID); len(conflicts) > 0 {
		return Result{
			Conflicts:    conflicts,
			ViolatedRule: RuleConflict,
			Message:      fmt.Sprintf("overlaps %d existing reservation(s)", len(conflicts)),
		}
	}

	return Result{Valid: true}
}

// withinOpenHours checks the interval sits entirely inside one contiguous
// open block of the start's date in the facility timezone. Cross-midnight
// requests fail unless the end lands exactly on the following midnight,
// which a block ending at 24:00 can admit.
func withinOpenHours(req Request, fac model.Facility) bool {
	loc, err := fac.Location()
	if err != nil {
		// Corrupted persisted state, not a rejected user action.
		panic(err)
	}

	start := req.Start.In(loc)
	end := req.End.In(loc)
	date := model.DateOf(start)

	// Flooring the start is conservative, but a sub-minute end must round
	// up or the containment check admits intervals poking past a block's
	// close.
	if end.Second() != 0 || end.Nanosecond() != 0 {
		end = end.Truncate(time.Minute).Add(time.Minute)
	}

	from := model.Minutes(start.Hour()*60 + start.Minute())
	var to model.Minutes
	switch {
	case model.DateOf(end) == date:
		to = model.Minutes(end.Hour()*60 + end.Minute())
	case model.DateOf(end) == date.Next() && end.Hour() == 0 && end.Minute() == 0:
		to = model.MinutesPerDay
	default:
		return false
	}

	for _, block := range schedule.ResolveOpenIntervals(fac.AvailabilitySchedule, date) {
		if block.Contains(from, to) {
			return true
		}
	}
	return false
}
