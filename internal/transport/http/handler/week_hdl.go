package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/render"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/response"
)

// GetWeekImage handles GET /api/mentors/{id}/week.png?date=YYYY-MM-DD
func (h *Handler) GetWeekImage(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	mentorID, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	now := time.Now()
	date := now
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			response.BadRequest(w, "Validation failed", map[string]string{"date": "Must be a date in YYYY-MM-DD format"})
			return
		}
		date = parsed
	}

	start := render.WeekStart(date)
	result, err := h.svc.Availability.Query(r.Context(), service.AvailabilityQuery{
		ViewerID: viewerID,
		From:     start,
		To:       start.AddDate(0, 0, 6),
	})
	if err != nil {
		h.handleServiceError(w, err, "render week")
		return
	}

	png, err := render.WeekImage(render.Week{
		Start: start,
		Hours: result.PerMentorSlots[mentorID],
		Now:   now,
	})
	if err != nil {
		h.handleServiceError(w, err, "render week")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
