package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stablebook/internal/db"
	"stablebook/internal/metrics"
	"stablebook/internal/model"
	"stablebook/internal/report"
)

// handleFacilities lists or creates facilities.
// GET /api/facilities?stableId=N
// POST /api/facilities
func (s *HTTPServer) handleFacilities(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("facilities")
	switch r.Method {
	case http.MethodGet:
		s.listFacilities(w, r)
	case http.MethodPost:
		s.createFacility(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listFacilities(w http.ResponseWriter, r *http.Request) {
	var stableID int64
	if v := r.URL.Query().Get("stableId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid stableId")
			return
		}
		stableID = id
	}

	facilities, err := s.db.ListFacilities(r.Context(), stableID)
	if err != nil {
		s.log.Error().Err(err).Msg("list facilities failed")
		writeError(w, http.StatusInternalServerError, "failed to list facilities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facilities": facilities})
}

func (s *HTTPServer) createFacility(w http.ResponseWriter, r *http.Request) {
	var f model.Facility
	if err := decodeStrict(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if f.Timezone == "" {
		f.Timezone = s.defaultTZ
	}

	if err := s.db.CreateFacility(r.Context(), &f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info().Int64("facility_id", f.ID).Str("name", f.Name).Msg("facility created")
	writeJSON(w, http.StatusCreated, f)
}

// handleFacilitySubtree routes /api/facilities/{id}[/...].
func (s *HTTPServer) handleFacilitySubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/facilities/")
	idStr, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	switch sub {
	case "":
		s.handleFacilityByID(w, r, id)
	case "slots":
		s.handleFacilitySlots(w, r, id)
	case "reservations/export":
		s.handleFacilityExport(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleFacilityByID reads or updates one facility.
// GET /api/facilities/{id}
// PATCH /api/facilities/{id}
func (s *HTTPServer) handleFacilityByID(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("facility")
	switch r.Method {
	case http.MethodGet:
		f, err := s.db.GetFacility(r.Context(), id)
		if err != nil {
			writeFacilityError(w, s, id, err)
			return
		}
		writeJSON(w, http.StatusOK, f)

	case http.MethodPatch:
		f, err := s.db.GetFacility(r.Context(), id)
		if err != nil {
			writeFacilityError(w, s, id, err)
			return
		}
		if err := decodeStrict(r, f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		f.ID = id
		if err := s.db.UpdateFacility(r.Context(), f); err != nil {
			writeFacilityError(w, s, id, err)
			return
		}

		// Schedule changes reshape every cached day.
		s.cache.InvalidateFacility(r.Context(), id)
		s.log.Info().Int64("facility_id", id).Msg("facility updated")
		writeJSON(w, http.StatusOK, f)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleFacilitySlots returns bookable start times for a day.
// GET /api/facilities/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleFacilitySlots(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("facility_slots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}

	facility, err := s.db.GetFacility(r.Context(), id)
	if err != nil {
		writeFacilityError(w, s, id, err)
		return
	}

	starts, ok := s.cache.Get(r.Context(), id, date)
	if !ok {
		loc, err := facility.Location()
		if err != nil {
			s.log.Error().Err(err).Int64("facility_id", id).Msg("corrupted facility timezone")
			writeError(w, http.StatusInternalServerError, "facility state is corrupted")
			return
		}
		midnight := date.Midnight(loc)
		existing, err := s.db.BlockingReservations(r.Context(), id, midnight, midnight.AddDate(0, 0, 1))
		if err != nil {
			s.log.Error().Err(err).Int64("facility_id", id).Msg("load reservations failed")
			writeError(w, http.StatusInternalServerError, "failed to load reservations")
			return
		}
		starts = s.gen.Collect(*facility, date, existing)
		s.cache.Set(r.Context(), id, date, starts)
	}

	if starts == nil {
		starts = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"facilityId": id,
		"date":       date,
		"slots":      starts,
	})
}

// handleFacilityExport streams an xlsx of a facility's reservations.
// GET /api/facilities/{id}/reservations/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleFacilityExport(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("facility_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, err := model.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected YYYY-MM-DD")
		return
	}
	to, err := model.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
		return
	}

	facility, err := s.db.GetFacility(r.Context(), id)
	if err != nil {
		writeFacilityError(w, s, id, err)
		return
	}
	loc, err := facility.Location()
	if err != nil {
		s.log.Error().Err(err).Int64("facility_id", id).Msg("corrupted facility timezone")
		writeError(w, http.StatusInternalServerError, "facility state is corrupted")
		return
	}

	// to is inclusive on the wire: export whole days.
	reservations, err := s.db.ListReservations(r.Context(), id,
		from.Midnight(loc), to.Next().Midnight(loc))
	if err != nil {
		s.log.Error().Err(err).Int64("facility_id", id).Msg("load reservations failed")
		writeError(w, http.StatusInternalServerError, "failed to load reservations")
		return
	}

	filename := fmt.Sprintf("reservations_%d_%s_%s.xlsx", id, from, to)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := report.WriteReservations(w, facility, reservations); err != nil {
		s.log.Error().Err(err).Int64("facility_id", id).Msg("export failed")
	}
}

func writeFacilityError(w http.ResponseWriter, s *HTTPServer, id int64, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("facility %d not found", id))
		return
	}
	s.log.Error().Err(err).Int64("facility_id", id).Msg("facility lookup failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
