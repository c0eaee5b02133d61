package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ExceptionType discriminates date-specific schedule overrides.
type ExceptionType string

const (
	ExceptionClosed   ExceptionType = "closed"
	ExceptionModified ExceptionType = "modified"
)

// DaySchedule describes one weekday of a facility's weekly template.
// Available=false means never bookable that weekday regardless of blocks.
// Available=true with no blocks means "use the facility default blocks";
// non-empty blocks replace the default entirely.
type DaySchedule struct {
	Available  bool        `json:"available"`
	TimeBlocks []TimeBlock `json:"timeBlocks,omitempty"`
}

// WeeklySchedule is the recurring template: default open blocks plus
// optional per-weekday overrides.
type WeeklySchedule struct {
	DefaultTimeBlocks []TimeBlock
	Days              map[time.Weekday]DaySchedule
}

var weekdayKeys = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func weekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

type weeklyScheduleWire struct {
	DefaultTimeBlocks []TimeBlock            `json:"defaultTimeBlocks"`
	Days              map[string]DaySchedule `json:"days,omitempty"`
}

// MarshalJSON emits only non-default days, matching what clients send.
func (w WeeklySchedule) MarshalJSON() ([]byte, error) {
	wire := weeklyScheduleWire{DefaultTimeBlocks: w.DefaultTimeBlocks}
	for day, ds := range w.Days {
		if ds.Available && len(ds.TimeBlocks) == 0 {
			continue
		}
		if wire.Days == nil {
			wire.Days = make(map[string]DaySchedule)
		}
		wire.Days[weekdayKey(day)] = ds
	}
	return json.Marshal(wire)
}

// UnmarshalJSON tolerates omitted days; Normalize fills them in afterwards.
func (w *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var wire weeklyScheduleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	w.DefaultTimeBlocks = wire.DefaultTimeBlocks
	w.Days = make(map[time.Weekday]DaySchedule, 7)
	for key, ds := range wire.Days {
		day, ok := weekdayKeys[strings.ToLower(key)]
		if !ok {
			return fmt.Errorf("unknown weekday %q", key)
		}
		w.Days[day] = ds
	}
	return nil
}

// ScheduleException overrides the weekly template for one calendar date.
// A "closed" exception wins over everything; a "modified" exception replaces
// the day's open blocks with its own.
type ScheduleException struct {
	Date       Date          `json:"date"`
	Type       ExceptionType `json:"type"`
	TimeBlocks []TimeBlock   `json:"timeBlocks,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// Validate rejects structurally broken exceptions in persisted state.
func (e ScheduleException) Validate() error {
	switch e.Type {
	case ExceptionClosed:
		return nil
	case ExceptionModified:
		if len(e.TimeBlocks) == 0 {
			return fmt.Errorf("modified exception on %s has no time blocks", e.Date)
		}
		return nil
	default:
		return fmt.Errorf("unknown exception type %q", e.Type)
	}
}

// AvailabilitySchedule is the full persisted description of when a facility
// can be booked. It is resolved against a concrete date to yield open blocks.
type AvailabilitySchedule struct {
	WeeklySchedule WeeklySchedule      `json:"weeklySchedule"`
	Exceptions     []ScheduleException `json:"exceptions,omitempty"`
}

// Normalize fills in the seven weekdays, sorts and merges blocks, orders
// exceptions by date and keeps only the first exception per date. Every
// downstream function assumes a normalized schedule, so this runs once,
// immediately after deserialization.
func (s *AvailabilitySchedule) Normalize() {
	s.WeeklySchedule.DefaultTimeBlocks = NormalizeBlocks(s.WeeklySchedule.DefaultTimeBlocks)

	days := make(map[time.Weekday]DaySchedule, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		ds, ok := s.WeeklySchedule.Days[d]
		if !ok {
			ds = DaySchedule{Available: true}
		}
		ds.TimeBlocks = NormalizeBlocks(ds.TimeBlocks)
		days[d] = ds
	}
	s.WeeklySchedule.Days = days

	sort.SliceStable(s.Exceptions, func(i, j int) bool {
		return s.Exceptions[i].Date.String() < s.Exceptions[j].Date.String()
	})
	deduped := s.Exceptions[:0]
	var prev string
	for _, e := range s.Exceptions {
		if key := e.Date.String(); key != prev {
			e.TimeBlocks = NormalizeBlocks(e.TimeBlocks)
			deduped = append(deduped, e)
			prev = key
		}
	}
	s.Exceptions = deduped
}

// ExceptionFor returns the exception for date, if any. Assumes Normalize ran.
func (s *AvailabilitySchedule) ExceptionFor(date Date) (ScheduleException, bool) {
	for _, e := range s.Exceptions {
		if e.Date == date {
			return e, true
		}
	}
	return ScheduleException{}, false
}

// Validate checks persisted-state invariants and fails loudly on corruption.
func (s *AvailabilitySchedule) Validate() error {
	for _, e := range s.Exceptions {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}
