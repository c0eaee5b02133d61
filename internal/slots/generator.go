// Package slots produces the bookable start times used by slot pickers and
// "find next free slot" features. It is a convenience layer over the
// schedule resolver and the conflict detector and holds no rules of its own.
package slots

import (
	"iter"
	"time"

	"stablebook/internal/booking"
	"stablebook/internal/model"
	"stablebook/internal/schedule"
)

// DefaultGranularity is the slot step used when none is configured.
const DefaultGranularity = 30 * time.Minute

// Generator enumerates candidate start times on a fixed granularity grid.
type Generator struct {
	Granularity time.Duration
}

func (g Generator) step() model.Minutes {
	gran := g.Granularity
	if gran <= 0 {
		gran = DefaultGranularity
	}
	return model.Minutes(gran / time.Minute)
}

// Starts returns a lazy, finite, restartable sequence of start times on
// date at which a minimum-duration booking would be admitted. Candidates
// walk each open block at the configured granularity; starts whose probe
// interval conflicts with a blocking reservation are skipped.
func (g Generator) Starts(fac model.Facility, date model.Date, existing []model.Reservation) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		loc, err := fac.Location()
		if err != nil {
			panic(err)
		}

		step := g.step()
		minDur := model.Minutes(fac.MinSlotDurationMinutes)

		blocking := existing[:0:0]
		for _, r := range existing {
			if r.Status.Blocks() {
				blocking = append(blocking, r)
			}
		}

		for _, block := range schedule.ResolveOpenIntervals(fac.AvailabilitySchedule, date) {
			for from := block.From; from+minDur <= block.To; from += step {
				start := clockTime(date, from, loc)
				end := clockTime(date, from+minDur, loc)
				if len(booking.FindConflicts(start, end, blocking, "")) > 0 {
					continue
				}
				if !yield(start) {
					return
				}
			}
		}
	}
}

// clockTime maps minutes-since-midnight to the wall-clock instant on date.
// Adding a duration to midnight would drift an hour on DST transition days,
// so slots would disagree with the wall-clock open hours.
func clockTime(date model.Date, m model.Minutes, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, int(m)/60, int(m)%60, 0, 0, loc)
}

// Collect materializes the sequence for pickers.
func (g Generator) Collect(fac model.Facility, date model.Date, existing []model.Reservation) []time.Time {
	var starts []time.Time
	for s := range g.Starts(fac, date, existing) {
		starts = append(starts, s)
	}
	return starts
}

// NextFree returns the first bookable start at or after from, scanning
// forward day by day until the facility's planning window closes. The
// second return is false when no slot exists inside the window.
func (g Generator) NextFree(fac model.Facility, from time.Time, existing []model.Reservation) (time.Time, bool) {
	loc, err := fac.Location()
	if err != nil {
		panic(err)
	}

	local := from.In(loc)
	date := model.DateOf(local)
	for day := 0; day <= fac.PlanningWindowOpensDays; day++ {
		for start := range g.Starts(fac, date, existing) {
			if !start.Before(from) {
				return start, true
			}
		}
		date = date.Next()
	}
	return time.Time{}, false
}
