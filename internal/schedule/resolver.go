// Package schedule resolves a facility's availability schedule against a
// concrete calendar date.
package schedule

import (
	"stablebook/internal/model"
)

// ResolveOpenIntervals computes the effective open blocks for one date.
//
// Precedence: a "closed" exception shuts the whole day; a "modified"
// exception replaces the day's blocks entirely (never merges with the weekly
// template); otherwise the weekday override applies, falling back to the
// facility default blocks. A day with no explicit hours is not bookable.
//
// The date must already be normalized to the facility timezone; no timezone
// math happens here.
func ResolveOpenIntervals(sched model.AvailabilitySchedule, date model.Date) []model.TimeBlock {
	if exc, ok := sched.ExceptionFor(date); ok {
		switch exc.Type {
		case model.ExceptionClosed:
			return nil
		case model.ExceptionModified:
			return model.NormalizeBlocks(exc.TimeBlocks)
		}
	}

	day, ok := sched.WeeklySchedule.Days[date.Weekday()]
	if !ok {
		// Missing days default to "available, no override".
		day = model.DaySchedule{Available: true}
	}
	if !day.Available {
		return nil
	}
	if len(day.TimeBlocks) > 0 {
		return model.NormalizeBlocks(day.TimeBlocks)
	}
	return model.NormalizeBlocks(sched.WeeklySchedule.DefaultTimeBlocks)
}
