package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/middleware"
	"github.com/diegomarin28/KERANA-sub001/internal/transport/http/response"
)

type HoldManager interface {
	PlaceHold(ctx context.Context, key model.SlotKey, requesterID int64) (*model.HoldToken, error)
	RenewHold(ctx context.Context, key model.SlotKey, requesterID int64) (*model.HoldToken, error)
	ReleaseHold(ctx context.Context, key model.SlotKey, requesterID int64) error
}

type BookingConfirmer interface {
	Confirm(ctx context.Context, key model.SlotKey, requesterID int64, details model.SessionDetails) (*model.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
}

type CancellationPolicy interface {
	Cancel(ctx context.Context, sessionID uuid.UUID, by model.CancelledBy) (*model.CancellationResult, error)
}

type AvailabilityProjector interface {
	Query(ctx context.Context, q service.AvailabilityQuery) (*service.Availability, error)
}

type TemplateManager interface {
	Replace(ctx context.Context, mentorID int64, hours []service.TemplateHour) ([]*model.WeeklyTemplateEntry, error)
	List(ctx context.Context, mentorID int64) ([]*model.WeeklyTemplateEntry, error)
}

type SlotProjector interface {
	ProjectMentor(ctx context.Context, mentorID int64) (int, error)
}

type SubjectManager interface {
	Assign(ctx context.Context, mentorID, subjectID int64) error
	Unassign(ctx context.Context, mentorID, subjectID int64) error
}

// Services зависимости обработчиков
type Services struct {
	Holds        HoldManager
	Bookings     BookingConfirmer
	Cancellation CancellationPolicy
	Availability AvailabilityProjector
	Templates    TemplateManager
	Projector    SlotProjector
	Subjects     SubjectManager
}

type Handler struct {
	svc Services
	log *zap.Logger
}

func New(svc Services, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With(zap.String("component", "http")),
	}
}

// handleServiceError пишет доменную ошибку клиенту; непредвиденные логируются как ошибки
func (h *Handler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	e := model.FromError(err)
	if e.Status >= http.StatusInternalServerError {
		h.log.Error(operation+" failed", zap.Error(err))
	} else {
		h.log.Debug(operation+" rejected",
			zap.String("code", e.Code),
			zap.String("message", e.Message),
		)
	}
	response.Error(w, err)
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return 0, false
	}
	return id, true
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.BadRequest(w, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
