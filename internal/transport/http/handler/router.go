package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/metrics"
	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/middleware"
	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/response"
)

func NewRouter(h *Handler, m *metrics.Metrics, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(log))
	r.Use(middleware.Logger(log, m))

	// ==================== PUBLIC ROUTES ====================
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, "ok", nil)
	})
	r.Handle("/metrics", m.Handler())

	// ==================== IDENTIFIED ROUTES (X-User-ID) ====================
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Get("/availability", h.GetAvailability)

		r.Route("/holds", func(r chi.Router) {
			r.Post("/", h.PlaceHold)
			r.Post("/renew", h.RenewHold)
			r.Post("/release", h.ReleaseHold)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.ConfirmBooking)
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/cancel", h.CancelSession)
		})

		r.Route("/mentors/{id}", func(r chi.Router) {
			r.Get("/week.png", h.GetWeekImage)
			r.Get("/template", h.GetTemplate)
			r.Put("/template", h.ReplaceTemplate)
			r.Post("/slots/project", h.ProjectSlots)
			r.Put("/subjects/{subject_id}", h.AssignSubject)
			r.Delete("/subjects/{subject_id}", h.UnassignSubject)
		})
	})

	return r
}
