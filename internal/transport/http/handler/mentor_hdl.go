package handler

import (
	"net/http"

	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/response"
)

// GetTemplate handles GET /api/mentors/{id}/template
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.svc.Templates.List(r.Context(), mentorID)
	if err != nil {
		h.handleServiceError(w, err, "list template")
		return
	}

	response.Success(w, "success", entries)
}

// ReplaceTemplate handles PUT /api/mentors/{id}/template (только сам ментор)
func (h *Handler) ReplaceTemplate(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	var req TemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	entries, err := h.svc.Templates.Replace(r.Context(), mentorID, req.Hours())
	if err != nil {
		h.handleServiceError(w, err, "replace template")
		return
	}

	response.Success(w, "Template replaced", entries)
}

// ProjectSlots handles POST /api/mentors/{id}/slots/project
func (h *Handler) ProjectSlots(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}

	created, err := h.svc.Projector.ProjectMentor(r.Context(), mentorID)
	if err != nil {
		h.handleServiceError(w, err, "project slots")
		return
	}

	response.Success(w, "Slots projected", map[string]int{"created": created})
}

// AssignSubject handles PUT /api/mentors/{id}/subjects/{subject_id}
func (h *Handler) AssignSubject(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}
	subjectID, ok := pathInt64(w, r, "subject_id")
	if !ok {
		return
	}

	if err := h.svc.Subjects.Assign(r.Context(), mentorID, subjectID); err != nil {
		h.handleServiceError(w, err, "assign subject")
		return
	}

	response.Success(w, "Subject assigned", nil)
}

// UnassignSubject handles DELETE /api/mentors/{id}/subjects/{subject_id}
func (h *Handler) UnassignSubject(w http.ResponseWriter, r *http.Request) {
	mentorID, ok := h.requireSelf(w, r)
	if !ok {
		return
	}
	subjectID, ok := pathInt64(w, r, "subject_id")
	if !ok {
		return
	}

	if err := h.svc.Subjects.Unassign(r.Context(), mentorID, subjectID); err != nil {
		h.handleServiceError(w, err, "unassign subject")
		return
	}

	response.Success(w, "Subject unassigned", nil)
}

// requireSelf ментор в пути должен совпадать с вызывающим
func (h *Handler) requireSelf(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return 0, false
	}
	mentorID, ok := pathInt64(w, r, "id")
	if !ok {
		return 0, false
	}
	if mentorID != userID {
		response.Forbidden(w, "Only the mentor can change their schedule")
		return 0, false
	}
	return mentorID, true
}
