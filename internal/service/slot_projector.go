package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

const DefaultProjectionHorizonDays = 60

// SlotProjector разворачивает недельные шаблоны менторов в слоты на горизонт вперёд.
// Существующие слоты не трогает, поэтому безопасен для повторного запуска.
type SlotProjector struct {
	slots       SlotStore
	templates   TemplateStore
	horizonDays int
	opts        options
	logger      *zap.Logger
}

func NewSlotProjector(slots SlotStore, templates TemplateStore, horizonDays int, logger *zap.Logger, opts ...Option) *SlotProjector {
	if horizonDays <= 0 {
		horizonDays = DefaultProjectionHorizonDays
	}
	return &SlotProjector{
		slots:       slots,
		templates:   templates,
		horizonDays: horizonDays,
		opts:        buildOptions(opts),
		logger:      logger.With(zap.String("service", "slot_projector")),
	}
}

// ProjectAll генерирует слоты для всех активных шаблонов.
// Вызывается при старте и периодически планировщиком.
func (p *SlotProjector) ProjectAll(ctx context.Context) (int, error) {
	entries, err := p.templates.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active template entries: %w", err)
	}

	byMentor := make(map[int64][]*model.WeeklyTemplateEntry)
	for _, e := range entries {
		byMentor[e.MentorID] = append(byMentor[e.MentorID], e)
	}

	total := 0
	for mentorID, mentorEntries := range byMentor {
		count, err := p.project(ctx, mentorEntries)
		if err != nil {
			p.logger.Error("Failed to project slots for mentor",
				zap.Error(err),
				zap.Int64("mentor_id", mentorID),
			)
			continue
		}
		total += count
	}

	p.opts.metrics.SlotsProjected(total)
	p.logger.Info("Projected slots for all weekly templates",
		zap.Int("mentors", len(byMentor)),
		zap.Int("template_entries", len(entries)),
		zap.Int("slots_created", total),
	)

	return total, nil
}

// ProjectMentor генерирует слоты для одного ментора
func (p *SlotProjector) ProjectMentor(ctx context.Context, mentorID int64) (int, error) {
	entries, err := p.templates.ListByMentor(ctx, mentorID)
	if err != nil {
		return 0, fmt.Errorf("list template entries: %w", err)
	}

	active := entries[:0:0]
	for _, e := range entries {
		if e.IsActive {
			active = append(active, e)
		}
	}

	count, err := p.project(ctx, active)
	if err != nil {
		return 0, err
	}

	p.opts.metrics.SlotsProjected(count)
	p.logger.Info("Projected slots for mentor",
		zap.Int64("mentor_id", mentorID),
		zap.Int("slots_created", count),
	)

	return count, nil
}

func (p *SlotProjector) project(ctx context.Context, entries []*model.WeeklyTemplateEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	now := p.opts.now()
	local := now.In(p.opts.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	slots := make([]*model.Slot, 0, len(entries)*p.horizonDays/7+len(entries))
	for i := 0; i < p.horizonDays; i++ {
		date := today.AddDate(0, 0, i)

		for _, e := range entries {
			if int(date.Weekday()) != e.Weekday {
				continue
			}

			key := model.NewSlotKey(e.MentorID, date, e.Hour)
			// Пропускаем прошедшие часы сегодняшнего дня
			if !key.StartTime(p.opts.loc).After(now) {
				continue
			}

			slot := &model.Slot{
				SlotKey:   key,
				SlotState: model.AvailableState(),
				Modality:  e.Modality,
				CreatedAt: now,
			}
			if e.Modality == model.ModalityInPerson {
				slot.Location = e.Location
			}
			slots = append(slots, slot)
		}
	}

	inserted, err := p.slots.BulkInsert(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("bulk insert slots: %w", err)
	}

	p.logger.Debug("Template projected",
		zap.Int64("mentor_id", entries[0].MentorID),
		zap.Int("candidates", len(slots)),
		zap.Int("inserted", inserted),
	)

	return inserted, nil
}
