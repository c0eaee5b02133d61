package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklySchedule_UnmarshalPartialDays(t *testing.T) {
	raw := `{
		"weeklySchedule": {
			"defaultTimeBlocks": [{"from":"08:00","to":"20:00"}],
			"days": {
				"sunday": {"available": false},
				"wednesday": {"available": true, "timeBlocks": [{"from":"10:00","to":"14:00"}]}
			}
		}
	}`

	var s AvailabilitySchedule
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	s.Normalize()

	// All seven days are present after normalization.
	assert.Len(t, s.WeeklySchedule.Days, 7)
	assert.False(t, s.WeeklySchedule.Days[time.Sunday].Available)
	assert.True(t, s.WeeklySchedule.Days[time.Monday].Available)
	assert.Empty(t, s.WeeklySchedule.Days[time.Monday].TimeBlocks)
	assert.Equal(t,
		[]TimeBlock{{From: 600, To: 840}},
		s.WeeklySchedule.Days[time.Wednesday].TimeBlocks)
}

func TestWeeklySchedule_UnknownWeekday(t *testing.T) {
	var w WeeklySchedule
	err := json.Unmarshal([]byte(`{"defaultTimeBlocks":[],"days":{"someday":{"available":true}}}`), &w)
	assert.Error(t, err)
}

func TestWeeklySchedule_MarshalOmitsDefaultDays(t *testing.T) {
	w := WeeklySchedule{
		DefaultTimeBlocks: []TimeBlock{{From: 480, To: 1200}},
		Days: map[time.Weekday]DaySchedule{
			time.Monday: {Available: true},
			time.Sunday: {Available: false},
		},
	}
	data, err := json.Marshal(w)
	require.NoError(t, err)

	var wire struct {
		Days map[string]DaySchedule `json:"days"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Len(t, wire.Days, 1)
	assert.Contains(t, wire.Days, "sunday")
}

func TestAvailabilitySchedule_NormalizeDedupesExceptions(t *testing.T) {
	jan5 := Date{Year: 2026, Month: time.January, Day: 5}
	jan2 := Date{Year: 2026, Month: time.January, Day: 2}

	s := AvailabilitySchedule{
		Exceptions: []ScheduleException{
			{Date: jan5, Type: ExceptionClosed},
			{Date: jan2, Type: ExceptionModified, TimeBlocks: []TimeBlock{{From: 600, To: 720}}},
			{Date: jan5, Type: ExceptionModified, TimeBlocks: []TimeBlock{{From: 480, To: 540}}},
		},
	}
	s.Normalize()

	require.Len(t, s.Exceptions, 2)
	assert.Equal(t, jan2, s.Exceptions[0].Date)
	assert.Equal(t, jan5, s.Exceptions[1].Date)
	// First exception per date wins.
	assert.Equal(t, ExceptionClosed, s.Exceptions[1].Type)

	got, ok := s.ExceptionFor(jan5)
	assert.True(t, ok)
	assert.Equal(t, ExceptionClosed, got.Type)

	_, ok = s.ExceptionFor(Date{Year: 2026, Month: time.January, Day: 9})
	assert.False(t, ok)
}

func TestScheduleException_Validate(t *testing.T) {
	d := Date{Year: 2026, Month: time.January, Day: 5}

	assert.NoError(t, ScheduleException{Date: d, Type: ExceptionClosed}.Validate())
	assert.Error(t, ScheduleException{Date: d, Type: ExceptionModified}.Validate())
	assert.NoError(t, ScheduleException{
		Date: d, Type: ExceptionModified,
		TimeBlocks: []TimeBlock{{From: 480, To: 600}},
	}.Validate())
	assert.Error(t, ScheduleException{Date: d, Type: "holiday"}.Validate())
}

func TestFacility_Normalize(t *testing.T) {
	f := Facility{Name: "Main arena"}
	f.Normalize()

	assert.Equal(t, FacilityActive, f.Status)
	assert.Equal(t, 30, f.MinSlotDurationMinutes)
	assert.Equal(t, 240, f.MaxDurationMinutes)
	assert.Equal(t, 1, f.MaxHorsesPerReservation)
	assert.Equal(t, 30, f.PlanningWindowOpensDays)
	assert.Len(t, f.AvailabilitySchedule.WeeklySchedule.Days, 7)
	assert.NoError(t, f.Validate())
}

func TestFacility_ValidateRejectsBadDurations(t *testing.T) {
	f := Facility{Name: "Wash stall", MinSlotDurationMinutes: 120, MaxDurationMinutes: 60}
	assert.Error(t, f.Validate())
}

func TestFacility_Location(t *testing.T) {
	f := Facility{Name: "Arena"}
	loc, err := f.Location()
	assert.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	f.Timezone = "Europe/Amsterdam"
	loc, err = f.Location()
	assert.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", loc.String())

	f.Timezone = "Mars/Olympus"
	_, err = f.Location()
	assert.Error(t, err)
}
