package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/response"
)

// GetAvailability handles GET /api/availability
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := AvailabilityRequest{
		From: query.Get("from"),
		To:   query.Get("to"),
	}
	if raw := query.Get("subject_id"); raw != "" {
		subjectID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "Validation failed", map[string]string{"subject_id": "Must be an integer"})
			return
		}
		req.SubjectID = &subjectID
	}

	if errs := ValidateStruct(req); len(errs) > 0 {
		response.BadRequest(w, "Validation failed", errs)
		return
	}

	from, _ := time.Parse(model.DateLayout, req.From)
	to, _ := time.Parse(model.DateLayout, req.To)

	result, err := h.svc.Availability.Query(r.Context(), service.AvailabilityQuery{
		ViewerID:  viewerID,
		From:      from,
		To:        to,
		SubjectID: req.SubjectID,
	})
	if err != nil {
		h.handleServiceError(w, err, "query availability")
		return
	}

	response.Success(w, "success", result)
}

// PlaceHold handles POST /api/holds
func (h *Handler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.svc.Holds.PlaceHold(r.Context(), req.Key(), userID)
	if err != nil {
		h.handleServiceError(w, err, "place hold")
		return
	}

	response.Created(w, "Hold placed", token)
}

// RenewHold handles POST /api/holds/renew
func (h *Handler) RenewHold(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.svc.Holds.RenewHold(r.Context(), req.Key(), userID)
	if err != nil {
		h.handleServiceError(w, err, "renew hold")
		return
	}

	response.Success(w, "Hold renewed", token)
}

// ReleaseHold handles POST /api/holds/release
func (h *Handler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.Holds.ReleaseHold(r.Context(), req.Key(), userID); err != nil {
		h.handleServiceError(w, err, "release hold")
		return
	}

	response.Success(w, "Hold released", nil)
}

// ConfirmBooking handles POST /api/sessions
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.svc.Bookings.Confirm(r.Context(), req.Key(), userID, req.Details())
	if err != nil {
		h.handleServiceError(w, err, "confirm booking")
		return
	}

	response.Created(w, "Session confirmed", session)
}

// GetSession handles GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.svc.Bookings.GetSession(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "get session")
		return
	}

	// Чужие сессии не раскрываем
	if session.StudentID != userID && session.MentorID != userID {
		response.Error(w, model.ErrSessionNotFound)
		return
	}

	response.Success(w, "success", session)
}

// CancelSession handles POST /api/sessions/{id}/cancel
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CancelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	by := model.CancelledBy(req.CancelledBy)

	session, err := h.svc.Bookings.GetSession(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "cancel session")
		return
	}

	if (by == model.CancelledByStudent && session.StudentID != userID) ||
		(by == model.CancelledByMentor && session.MentorID != userID) {
		response.Forbidden(w, "Caller is not the "+req.CancelledBy+" of this session")
		return
	}

	result, err := h.svc.Cancellation.Cancel(r.Context(), id, by)
	if err != nil {
		h.handleServiceError(w, err, "cancel session")
		return
	}

	response.Success(w, "Session cancelled", result)
}
