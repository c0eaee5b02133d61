package slots

import (
	"testing"
	"time"

	"stablebook/internal/model"
)

// 2026-03-17 is a Tuesday.
var tuesday = model.Date{Year: 2026, Month: time.March, Day: 17}

func testFacility() model.Facility {
	f := model.Facility{
		ID:   1,
		Name: "Main arena",
		AvailabilitySchedule: model.AvailabilitySchedule{
			WeeklySchedule: model.WeeklySchedule{
				DefaultTimeBlocks: []model.TimeBlock{{From: 540, To: 720}}, // 09:00-12:00
			},
		},
		PlanningWindowOpensDays: 14,
		MinSlotDurationMinutes:  30,
		MaxDurationMinutes:      240,
		MaxHorsesPerReservation: 2,
	}
	f.Normalize()
	return f
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 17, hour, min, 0, 0, time.UTC)
}

func reservation(id string, start, end time.Time, status model.ReservationStatus) model.Reservation {
	return model.Reservation{ID: id, FacilityID: 1, Start: start, End: end, Status: status}
}

func TestStarts_GridWithinBlock(t *testing.T) {
	g := Generator{Granularity: 30 * time.Minute}

	got := g.Collect(testFacility(), tuesday, nil)

	// 09:00-12:00 with 30 min slots leaves room up to 11:30.
	want := []time.Time{at(9, 0), at(9, 30), at(10, 0), at(10, 30), at(11, 0), at(11, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %d starts, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("start %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStarts_SkipsConflictingStarts(t *testing.T) {
	g := Generator{Granularity: 30 * time.Minute}
	existing := []model.Reservation{
		reservation("busy", at(10, 0), at(11, 0), model.StatusConfirmed),
	}

	got := g.Collect(testFacility(), tuesday, existing)

	want := []time.Time{at(9, 0), at(9, 30), at(11, 0), at(11, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("start %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStarts_CancelledReservationsDoNotBlock(t *testing.T) {
	g := Generator{Granularity: 60 * time.Minute}
	existing := []model.Reservation{
		reservation("gone", at(9, 0), at(12, 0), model.StatusCancelled),
	}

	got := g.Collect(testFacility(), tuesday, existing)
	if len(got) != 3 {
		t.Errorf("cancelled booking must not block slots, got %v", got)
	}
}

func TestStarts_ClosedDayYieldsNothing(t *testing.T) {
	fac := testFacility()
	fac.AvailabilitySchedule.Exceptions = []model.ScheduleException{
		{Date: tuesday, Type: model.ExceptionClosed},
	}
	fac.AvailabilitySchedule.Normalize()

	g := Generator{}
	if got := g.Collect(fac, tuesday, nil); len(got) != 0 {
		t.Errorf("expected no slots on a closed date, got %v", got)
	}
}

func TestStarts_DefaultGranularity(t *testing.T) {
	g := Generator{}
	got := g.Collect(testFacility(), tuesday, nil)
	if len(got) != 6 {
		t.Errorf("expected 30-minute default granularity, got %d starts", len(got))
	}
}

func TestStarts_LazyAndRestartable(t *testing.T) {
	g := Generator{Granularity: 30 * time.Minute}
	seq := g.Starts(testFacility(), tuesday, nil)

	// Early break stops the walk.
	var first time.Time
	for s := range seq {
		first = s
		break
	}
	if !first.Equal(at(9, 0)) {
		t.Fatalf("first start = %v, want 09:00", first)
	}

	// The same sequence can be walked again from the beginning.
	count := 0
	for range seq {
		count++
	}
	if count != 6 {
		t.Errorf("restarted sequence yielded %d starts, want 6", count)
	}
}

func TestStarts_SpringForwardKeepsWallClock(t *testing.T) {
	fac := testFacility()
	fac.Timezone = "Europe/Amsterdam"

	// Clocks jump 02:00 -> 03:00 on this date; starts must stay on the
	// 09:00-12:00 wall-clock grid, not drift an hour.
	springForward := model.Date{Year: 2026, Month: time.March, Day: 29}
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatal(err)
	}

	g := Generator{Granularity: 30 * time.Minute}
	got := g.Collect(fac, springForward, nil)
	if len(got) != 6 {
		t.Fatalf("got %d starts, want 6: %v", len(got), got)
	}
	first := got[0].In(loc)
	if first.Hour() != 9 || first.Minute() != 0 {
		t.Errorf("first start = %s local, want 09:00", first.Format("15:04"))
	}
	last := got[len(got)-1].In(loc)
	if last.Hour() != 11 || last.Minute() != 30 {
		t.Errorf("last start = %s local, want 11:30", last.Format("15:04"))
	}
}

func TestNextFree(t *testing.T) {
	g := Generator{Granularity: 30 * time.Minute}
	existing := []model.Reservation{
		reservation("busy", at(9, 0), at(11, 30), model.StatusConfirmed),
	}

	start, ok := g.NextFree(testFacility(), at(9, 0), existing)
	if !ok {
		t.Fatal("expected a free slot")
	}
	if !start.Equal(at(11, 30)) {
		t.Errorf("next free = %v, want 11:30", start)
	}
}

func TestNextFree_RollsToNextDay(t *testing.T) {
	g := Generator{Granularity: 30 * time.Minute}
	// Tuesday fully booked.
	existing := []model.Reservation{
		reservation("all-day", at(9, 0), at(12, 0), model.StatusConfirmed),
	}

	start, ok := g.NextFree(testFacility(), at(9, 0), existing)
	if !ok {
		t.Fatal("expected a free slot on a later day")
	}
	want := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("next free = %v, want %v", start, want)
	}
}

func TestNextFree_NoSlotInsideWindow(t *testing.T) {
	fac := testFacility()
	fac.AvailabilitySchedule.WeeklySchedule.DefaultTimeBlocks = nil
	fac.AvailabilitySchedule.Normalize()

	g := Generator{}
	if _, ok := g.NextFree(fac, at(9, 0), nil); ok {
		t.Error("expected no slot for a facility with no open hours")
	}
}
