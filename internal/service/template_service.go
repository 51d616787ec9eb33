package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

// TemplateHour одна позиция шаблона, как её присылает клиент
type TemplateHour struct {
	Weekday  int
	Hour     int
	Modality model.Modality
	Location *string
}

// TemplateService управляет недельным шаблоном ментора
type TemplateService struct {
	templates TemplateStore
	projector *SlotProjector
	opts      options
	logger    *zap.Logger
}

func NewTemplateService(templates TemplateStore, projector *SlotProjector, logger *zap.Logger, opts ...Option) *TemplateService {
	return &TemplateService{
		templates: templates,
		projector: projector,
		opts:      buildOptions(opts),
		logger:    logger.With(zap.String("service", "template")),
	}
}

// Replace заменяет шаблон целиком и сразу проецирует новые слоты.
// Уже созданные слоты не удаляются: на них могут быть холды и брони.
func (s *TemplateService) Replace(ctx context.Context, mentorID int64, hours []TemplateHour) ([]*model.WeeklyTemplateEntry, error) {
	if mentorID <= 0 {
		return nil, model.WithMessage(model.ErrValidation, "mentor_id must be positive")
	}

	groupID := uuid.New()
	now := s.opts.now()
	seen := make(map[[2]int]bool, len(hours))
	entries := make([]*model.WeeklyTemplateEntry, 0, len(hours))

	for _, h := range hours {
		if h.Weekday < 0 || h.Weekday > 6 {
			return nil, model.WithMessage(model.ErrValidation, "weekday must be between 0 and 6")
		}
		if h.Hour < 0 || h.Hour > 23 {
			return nil, model.WithMessage(model.ErrValidation, "hour must be between 0 and 23")
		}
		if h.Modality != model.ModalityVirtual && h.Modality != model.ModalityInPerson {
			return nil, model.WithMessage(model.ErrValidation, "modality must be virtual or in_person")
		}

		k := [2]int{h.Weekday, h.Hour}
		if seen[k] {
			return nil, model.WithMessage(model.ErrValidation,
				fmt.Sprintf("duplicate template hour: weekday %d hour %d", h.Weekday, h.Hour))
		}
		seen[k] = true

		entry := &model.WeeklyTemplateEntry{
			GroupID:   groupID,
			MentorID:  mentorID,
			Weekday:   h.Weekday,
			Hour:      h.Hour,
			Modality:  h.Modality,
			IsActive:  true,
			CreatedAt: now,
		}
		if h.Modality == model.ModalityInPerson {
			entry.Location = h.Location
		}
		entries = append(entries, entry)
	}

	if err := s.templates.Replace(ctx, mentorID, entries); err != nil {
		return nil, fmt.Errorf("replace template: %w", err)
	}

	s.logger.Info("Weekly template replaced",
		zap.Int64("mentor_id", mentorID),
		zap.String("group_id", groupID.String()),
		zap.Int("entries", len(entries)),
	)

	if s.projector != nil {
		if _, err := s.projector.ProjectMentor(ctx, mentorID); err != nil {
			// Шаблон уже сохранён, слоты догенерирует периодическая проекция
			s.logger.Error("Failed to project slots after template change",
				zap.Error(err),
				zap.Int64("mentor_id", mentorID),
			)
		}
	}

	return entries, nil
}

func (s *TemplateService) List(ctx context.Context, mentorID int64) ([]*model.WeeklyTemplateEntry, error) {
	return s.templates.ListByMentor(ctx, mentorID)
}
