package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"stablebook/internal/booking"
	"stablebook/internal/db"
	"stablebook/internal/metrics"
	"stablebook/internal/model"
)

// CreateReservationRequest is the body for POST /api/facility-reservations.
type CreateReservationRequest struct {
	FacilityID int64     `json:"facilityId"`
	UserID     int64     `json:"userId"`
	HorseIDs   []int64   `json:"horseIds"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// UpdateReservationRequest is the body for PATCH on a reservation. Either
// a new interval (move) or a new status (lifecycle), not both.
type UpdateReservationRequest struct {
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
	Status string     `json:"status,omitempty"`
}

// CheckConflictsRequest is the body for the advisory pre-check.
type CheckConflictsRequest struct {
	FacilityID           int64     `json:"facilityId"`
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	HorseCount           int       `json:"horseCount"`
	ExcludeReservationID string    `json:"excludeReservationId,omitempty"`
}

// handleCreateReservation books a facility slot.
// POST /api/facility-reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CreateReservationRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FacilityID <= 0 || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "facilityId and userId are required")
		return
	}
	if len(req.HorseIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one horse is required")
		return
	}

	reservation := &model.Reservation{
		FacilityID: req.FacilityID,
		UserID:     req.UserID,
		HorseIDs:   req.HorseIDs,
		Start:      req.Start,
		End:        req.End,
	}
	result, err := s.db.CreateReservation(r.Context(), reservation, time.Now())
	if err != nil {
		writeReservationError(w, s, err)
		return
	}
	if !result.Valid {
		writeRejection(w, result)
		return
	}

	s.invalidateSlots(r, reservation.FacilityID, reservation.Start, reservation.End)
	s.log.Info().
		Str("reservation_id", reservation.ID).
		Int64("facility_id", reservation.FacilityID).
		Int64("user_id", reservation.UserID).
		Msg("reservation created")
	writeJSON(w, http.StatusCreated, reservation)
}

// handleReservationByID reads, moves or transitions one reservation.
// GET /api/facility-reservations/{id}
// PATCH /api/facility-reservations/{id}
func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation")
	id := strings.TrimPrefix(r.URL.Path, "/api/facility-reservations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		reservation, err := s.db.GetReservation(r.Context(), id)
		if err != nil {
			writeReservationError(w, s, err)
			return
		}
		writeJSON(w, http.StatusOK, reservation)

	case http.MethodPatch:
		s.updateReservation(w, r, id)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) updateReservation(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateReservationRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	isMove := req.Start != nil || req.End != nil
	if isMove == (req.Status != "") {
		writeError(w, http.StatusBadRequest, "provide either start and end, or status")
		return
	}

	if isMove {
		if req.Start == nil || req.End == nil {
			writeError(w, http.StatusBadRequest, "moving requires both start and end")
			return
		}
		old, err := s.db.GetReservation(r.Context(), id)
		if err != nil {
			writeReservationError(w, s, err)
			return
		}

		result, moved, err := s.db.MoveReservation(r.Context(), id, *req.Start, *req.End, time.Now())
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeReservationError(w, s, err)
				return
			}
			// Terminal-status reservations cannot be moved.
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if !result.Valid {
			writeRejection(w, result)
			return
		}

		// Both the vacated and the newly held window change slot pickers.
		s.invalidateSlots(r, old.FacilityID, old.Start, old.End)
		s.invalidateSlots(r, moved.FacilityID, moved.Start, moved.End)
		s.log.Info().Str("reservation_id", id).Msg("reservation moved")
		writeJSON(w, http.StatusOK, moved)
		return
	}

	updated, err := s.db.UpdateReservationStatus(r.Context(), id, model.ReservationStatus(req.Status), time.Now())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeReservationError(w, s, err)
			return
		}
		// Illegal transition or unknown status.
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.invalidateSlots(r, updated.FacilityID, updated.Start, updated.End)
	s.log.Info().
		Str("reservation_id", id).
		Str("status", string(updated.Status)).
		Msg("reservation status updated")
	writeJSON(w, http.StatusOK, updated)
}

// handleCheckConflicts runs the validator without writing. The verdict is
// advisory: the create path re-validates inside its transaction.
// POST /api/facility-reservations/check-conflicts
func (s *HTTPServer) handleCheckConflicts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("check_conflicts")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CheckConflictsRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FacilityID <= 0 {
		writeError(w, http.StatusBadRequest, "facilityId is required")
		return
	}

	result, err := s.db.CheckConflicts(r.Context(), req.FacilityID, booking.Request{
		Start:                req.Start,
		End:                  req.End,
		HorseCount:           req.HorseCount,
		ExcludeReservationID: req.ExcludeReservationID,
	}, time.Now())
	if err != nil {
		writeReservationError(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeRejection maps a business rejection to 409 with the full verdict so
// clients can surface the violated rule and conflicting reservations.
func writeRejection(w http.ResponseWriter, result booking.Result) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"error":        result.Message,
		"violatedRule": result.ViolatedRule,
		"conflicts":    result.Conflicts,
	})
}

func (s *HTTPServer) invalidateSlots(r *http.Request, facilityID int64, start, end time.Time) {
	facility, err := s.db.GetFacility(r.Context(), facilityID)
	if err != nil {
		return
	}
	loc, err := facility.Location()
	if err != nil {
		return
	}
	s.cache.InvalidateSpan(r.Context(), facilityID, start, end, loc)
}

func writeReservationError(w http.ResponseWriter, s *HTTPServer, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error().Err(err).Msg("reservation operation failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
