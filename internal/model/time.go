package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Minutes is a time of day expressed as minutes since midnight.
type Minutes int

// MinutesPerDay is the exclusive upper bound for a block end ("24:00").
const MinutesPerDay Minutes = 24 * 60

// ParseMinutes parses an "HH:MM" string. "24:00" is accepted as an end
// boundary meaning midnight at the close of the day.
func ParseMinutes(s string) (Minutes, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return Minutes(h*60 + m), nil
}

// String formats as "HH:MM".
func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// Valid reports whether m is a representable time of day.
func (m Minutes) Valid() bool {
	return m >= 0 && m <= MinutesPerDay
}

// TimeBlock is a half-open time-of-day interval [From, To).
type TimeBlock struct {
	From Minutes
	To   Minutes
}

// Overlaps reports whether two half-open blocks intersect.
// Back-to-back blocks (b.To == o.From) do not overlap.
func (b TimeBlock) Overlaps(o TimeBlock) bool {
	return b.From < o.To && o.From < b.To
}

// Contains reports whether [from, to) sits entirely inside the block.
func (b TimeBlock) Contains(from, to Minutes) bool {
	return from >= b.From && to <= b.To
}

// DurationMinutes returns the block length in minutes.
func (b TimeBlock) DurationMinutes() int {
	return int(b.To - b.From)
}

type timeBlockWire struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MarshalJSON emits the wire shape {"from":"HH:MM","to":"HH:MM"}.
func (b TimeBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeBlockWire{From: b.From.String(), To: b.To.String()})
}

// UnmarshalJSON parses the wire shape and rejects inverted or empty blocks.
// A from >= to block in persisted state is corrupted data, not a user error.
func (b *TimeBlock) UnmarshalJSON(data []byte) error {
	var w timeBlockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	from, err := ParseMinutes(w.From)
	if err != nil {
		return fmt.Errorf("time block from: %w", err)
	}
	to, err := ParseMinutes(w.To)
	if err != nil {
		return fmt.Errorf("time block to: %w", err)
	}
	if from >= to {
		return fmt.Errorf("time block %s-%s: from must be before to", w.From, w.To)
	}
	b.From, b.To = from, to
	return nil
}

// NormalizeBlocks sorts blocks ascending by start and merges any that touch
// or overlap. The schedule editor must prevent overlaps, but downstream code
// never assumes it did.
func NormalizeBlocks(blocks []TimeBlock) []TimeBlock {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]TimeBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].To < sorted[j].To
	})

	merged := sorted[:1]
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if b.From <= last.To {
			if b.To > last.To {
				last.To = b.To
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// Date is a civil calendar date, already normalized to the facility timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// String formats as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Weekday returns the day of week of the date.
func (d Date) Weekday() time.Weekday {
	return d.Midnight(time.UTC).Weekday()
}

// Midnight returns the start of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Next returns the following calendar date.
func (d Date) Next() Date {
	return DateOf(d.Midnight(time.UTC).AddDate(0, 0, 1))
}

// MarshalJSON emits the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
