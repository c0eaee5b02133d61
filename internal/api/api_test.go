package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stablebook/internal/booking"
	"stablebook/internal/config"
	"stablebook/internal/db"
	"stablebook/internal/model"
)

const testAPIKey = "valid-key"

type ErrorResponse struct {
	Error string `json:"error"`
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	database, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{}
	cfg.Server.APIKeys = []string{testAPIKey}
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Booking.SlotGranularityMinutes = 30

	logger := zerolog.Nop()
	return NewHTTPServer(cfg, database, nil, &logger)
}

func doRequest(t *testing.T, s *HTTPServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", testAPIKey)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// allDayFacility books from midnight to midnight so tests are not
// sensitive to the wall clock.
func allDayFacility() *model.Facility {
	return &model.Facility{
		StableID: 1,
		Name:     "Main arena",
		Type:     "arena",
		AvailabilitySchedule: model.AvailabilitySchedule{
			WeeklySchedule: model.WeeklySchedule{
				DefaultTimeBlocks: []model.TimeBlock{{From: 0, To: model.MinutesPerDay}},
			},
		},
		MaxHorsesPerReservation: 2,
		MinSlotDurationMinutes:  30,
		MaxDurationMinutes:      240,
	}
}

func createFacility(t *testing.T, s *HTTPServer) model.Facility {
	t.Helper()
	w := doRequest(t, s, http.MethodPost, "/api/facilities", allDayFacility())
	if w.Code != http.StatusCreated {
		t.Fatalf("create facility: status = %d, body = %s", w.Code, w.Body.String())
	}
	var f model.Facility
	if err := json.Unmarshal(w.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode facility: %v", err)
	}
	return f
}

// bookableWindow returns an interval safely inside the default planning
// window, aligned to the slot grid.
func bookableWindow() (time.Time, time.Time) {
	start := time.Now().UTC().AddDate(0, 0, 2).Truncate(time.Hour)
	return start, start.Add(time.Hour)
}

func TestAuth_RejectsMissingOrBadKey(t *testing.T) {
	s := newTestServer(t)

	for _, key := range []string{"", "wrong-key"} {
		req := httptest.NewRequest(http.MethodGet, "/api/facilities", nil)
		if key != "" {
			req.Header.Set("X-Api-Key", key)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("key %q: status = %d, want 401", key, w.Code)
		}
	}
}

func TestFacilities_CreateAndGet(t *testing.T) {
	s := newTestServer(t)

	f := createFacility(t, s)
	if f.ID == 0 {
		t.Fatal("expected facility id to be assigned")
	}
	if f.Status != model.FacilityActive {
		t.Errorf("status = %q, want active default", f.Status)
	}

	w := doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/facilities/%d", f.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	var got model.Facility
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Main arena" {
		t.Errorf("name = %q", got.Name)
	}
	blocks := got.AvailabilitySchedule.WeeklySchedule.DefaultTimeBlocks
	if len(blocks) != 1 || blocks[0].From != 0 || blocks[0].To != model.MinutesPerDay {
		t.Errorf("default blocks did not round-trip: %+v", blocks)
	}
}

func TestFacilities_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"invalid JSON", "not json"},
		{"missing name", &model.Facility{StableID: 1}},
		{"bad timezone", &model.Facility{StableID: 1, Name: "x", Timezone: "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodPost, "/api/facilities", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestFacilities_ListFiltersByStable(t *testing.T) {
	s := newTestServer(t)
	createFacility(t, s)

	other := allDayFacility()
	other.StableID = 2
	other.Name = "Wash stall"
	w := doRequest(t, s, http.MethodPost, "/api/facilities", other)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/facilities?stableId=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	var resp struct {
		Facilities []model.Facility `json:"facilities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Facilities) != 1 || resp.Facilities[0].Name != "Wash stall" {
		t.Errorf("unexpected list: %+v", resp.Facilities)
	}
}

func TestFacilities_GetNotFound(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/facilities/42", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestReservations_CreateAndConflict(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)
	start, end := bookableWindow()

	w := doRequest(t, s, http.MethodPost, "/api/facility-reservations", CreateReservationRequest{
		FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1}, Start: start, End: end,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", w.Code, w.Body.String())
	}
	var first model.Reservation
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.ID == "" || first.Status != model.StatusPending {
		t.Errorf("unexpected reservation: %+v", first)
	}

	// Overlapping second booking is rejected with the conflict attached.
	w = doRequest(t, s, http.MethodPost, "/api/facility-reservations", CreateReservationRequest{
		FacilityID: f.ID, UserID: 8, HorseIDs: []int64{2},
		Start: start.Add(30 * time.Minute), End: end.Add(30 * time.Minute),
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("conflict: status = %d, body = %s", w.Code, w.Body.String())
	}
	var rejection struct {
		Error        string              `json:"error"`
		ViolatedRule string              `json:"violatedRule"`
		Conflicts    []model.Reservation `json:"conflicts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rejection); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if rejection.ViolatedRule != string(booking.RuleConflict) {
		t.Errorf("violatedRule = %q, want conflict", rejection.ViolatedRule)
	}
	if len(rejection.Conflicts) != 1 || rejection.Conflicts[0].ID != first.ID {
		t.Errorf("conflicts = %+v", rejection.Conflicts)
	}
}

func TestReservations_ValidationRejections(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)
	start, _ := bookableWindow()

	tests := []struct {
		name     string
		req      CreateReservationRequest
		wantCode int
		wantRule booking.RuleKind
	}{
		{
			name: "too short",
			req: CreateReservationRequest{
				FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1},
				Start: start, End: start.Add(10 * time.Minute),
			},
			wantCode: http.StatusConflict,
			wantRule: booking.RuleDuration,
		},
		{
			name: "too many horses",
			req: CreateReservationRequest{
				FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1, 2, 3},
				Start: start, End: start.Add(time.Hour),
			},
			wantCode: http.StatusConflict,
			wantRule: booking.RuleHorseLimit,
		},
		{
			name: "beyond planning window",
			req: CreateReservationRequest{
				FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1},
				Start: start.AddDate(0, 0, 90), End: start.AddDate(0, 0, 90).Add(time.Hour),
			},
			wantCode: http.StatusConflict,
			wantRule: booking.RuleBookingWindow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodPost, "/api/facility-reservations", tt.req)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, tt.wantCode, w.Body.String())
			}
			var rejection struct {
				ViolatedRule string `json:"violatedRule"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &rejection); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rejection.ViolatedRule != string(tt.wantRule) {
				t.Errorf("violatedRule = %q, want %q", rejection.ViolatedRule, tt.wantRule)
			}
		})
	}
}

func TestReservations_Move(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)
	start, end := bookableWindow()

	w := doRequest(t, s, http.MethodPost, "/api/facility-reservations", CreateReservationRequest{
		FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1}, Start: start, End: end,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	var r model.Reservation
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}

	newStart, newEnd := start.Add(2*time.Hour), end.Add(2*time.Hour)
	w = doRequest(t, s, http.MethodPatch, "/api/facility-reservations/"+r.ID,
		UpdateReservationRequest{Start: &newStart, End: &newEnd})
	if w.Code != http.StatusOK {
		t.Fatalf("move: status = %d, body = %s", w.Code, w.Body.String())
	}
	var moved model.Reservation
	if err := json.Unmarshal(w.Body.Bytes(), &moved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !moved.Start.Equal(newStart) {
		t.Errorf("start = %v, want %v", moved.Start, newStart)
	}
}

func TestReservations_StatusLifecycle(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)
	start, end := bookableWindow()

	w := doRequest(t, s, http.MethodPost, "/api/facility-reservations", CreateReservationRequest{
		FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1}, Start: start, End: end,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	var r model.Reservation
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doRequest(t, s, http.MethodPatch, "/api/facility-reservations/"+r.ID,
		UpdateReservationRequest{Status: "confirmed"})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: status = %d, body = %s", w.Code, w.Body.String())
	}

	// pending is not reachable from confirmed.
	w = doRequest(t, s, http.MethodPatch, "/api/facility-reservations/"+r.ID,
		UpdateReservationRequest{Status: "pending"})
	if w.Code != http.StatusConflict {
		t.Errorf("illegal transition: status = %d, want 409", w.Code)
	}

	// Move and status in one request is ambiguous.
	w = doRequest(t, s, http.MethodPatch, "/api/facility-reservations/"+r.ID,
		UpdateReservationRequest{Start: &start, End: &end, Status: "cancelled"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("mixed update: status = %d, want 400", w.Code)
	}
}

func TestCheckConflicts_Advisory(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)
	start, end := bookableWindow()

	w := doRequest(t, s, http.MethodPost, "/api/facility-reservations", CreateReservationRequest{
		FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1}, Start: start, End: end,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/facility-reservations/check-conflicts",
		CheckConflictsRequest{
			FacilityID: f.ID, Start: start, End: end, HorseCount: 1,
		})
	if w.Code != http.StatusOK {
		t.Fatalf("check: status = %d, body = %s", w.Code, w.Body.String())
	}
	var result booking.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Valid {
		t.Error("expected a conflict verdict")
	}
	if result.ViolatedRule != booking.RuleConflict {
		t.Errorf("violatedRule = %q", result.ViolatedRule)
	}

	// The advisory check wrote nothing: a free interval still validates.
	w = doRequest(t, s, http.MethodPost, "/api/facility-reservations/check-conflicts",
		CheckConflictsRequest{
			FacilityID: f.ID, Start: end.Add(time.Hour), End: end.Add(2 * time.Hour), HorseCount: 1,
		})
	if w.Code != http.StatusOK {
		t.Fatalf("check: status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid verdict, got %+v", result)
	}
}

func TestFacilitySlots(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)
	start, end := bookableWindow()

	w := doRequest(t, s, http.MethodPost, "/api/facility-reservations", CreateReservationRequest{
		FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1}, Start: start, End: end,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}

	date := model.DateOf(start)
	w = doRequest(t, s, http.MethodGet,
		fmt.Sprintf("/api/facilities/%d/slots?date=%s", f.ID, date), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("slots: status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		FacilityID int64       `json:"facilityId"`
		Date       string      `json:"date"`
		Slots      []time.Time `json:"slots"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// An all-day schedule on a 30m grid has 48 starts; the 1h booking
	// knocks out two of them.
	if len(resp.Slots) != 46 {
		t.Errorf("slots = %d, want 46", len(resp.Slots))
	}
	for _, slot := range resp.Slots {
		if !slot.Before(start) && slot.Before(end) {
			t.Errorf("booked start %v still offered", slot)
		}
	}
}

func TestFacilitySlots_BadDate(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)

	w := doRequest(t, s, http.MethodGet,
		fmt.Sprintf("/api/facilities/%d/slots?date=17-03-2026", f.ID), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestFacilityExport(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)
	start, end := bookableWindow()

	w := doRequest(t, s, http.MethodPost, "/api/facility-reservations", CreateReservationRequest{
		FacilityID: f.ID, UserID: 7, HorseIDs: []int64{1}, Start: start, End: end,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}

	date := model.DateOf(start)
	w = doRequest(t, s, http.MethodGet,
		fmt.Sprintf("/api/facilities/%d/reservations/export?from=%s&to=%s", f.ID, date, date), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("expected workbook bytes")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	f := createFacility(t, s)

	w := doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/facilities/%d", f.ID), nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
	w = doRequest(t, s, http.MethodGet, "/api/facility-reservations/check-conflicts", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
