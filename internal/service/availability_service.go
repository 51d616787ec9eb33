package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

const maxAvailabilityDays = 92

// AvailabilityQuery диапазон дат включительно; SubjectID ограничивает менторов предметом
type AvailabilityQuery struct {
	ViewerID  int64
	From      time.Time
	To        time.Time
	SubjectID *int64
}

// Availability календарь свободных часов с точки зрения конкретного зрителя
type Availability struct {
	PerDayMentorCount map[string]int             `json:"per_day_mentor_count"`
	PerMentorSlots    map[int64]map[string][]int `json:"per_mentor_slots"`
}

func newAvailability() *Availability {
	return &Availability{
		PerDayMentorCount: make(map[string]int),
		PerMentorSlots:    make(map[int64]map[string][]int),
	}
}

// AvailabilityService строит календарь доступности. Кэша нет: каждый вызов читает хранилище.
type AvailabilityService struct {
	slots    SlotStore
	subjects SubjectDirectory
	opts     options
	logger   *zap.Logger
}

func NewAvailabilityService(slots SlotStore, subjects SubjectDirectory, logger *zap.Logger, opts ...Option) *AvailabilityService {
	return &AvailabilityService{
		slots:    slots,
		subjects: subjects,
		opts:     buildOptions(opts),
		logger:   logger.With(zap.String("service", "availability")),
	}
}

func (s *AvailabilityService) Query(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	from := model.TruncateDate(q.From)
	to := model.TruncateDate(q.To)

	if to.Before(from) {
		return nil, model.WithMessage(model.ErrValidation, "to must not be before from")
	}
	if to.Sub(from) > maxAvailabilityDays*24*time.Hour {
		return nil, model.WithMessage(model.ErrValidation,
			fmt.Sprintf("date range must not exceed %d days", maxAvailabilityDays))
	}

	var mentorIDs []int64
	if q.SubjectID != nil {
		ids, err := s.subjects.MentorsBySubject(ctx, *q.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("get mentors by subject: %w", err)
		}
		if len(ids) == 0 {
			return newAvailability(), nil
		}
		mentorIDs = ids
	}

	rows, err := s.slots.ListOpen(ctx, from, to, mentorIDs)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}

	now := s.opts.now()
	result := newAvailability()

	for _, slot := range rows {
		if !s.bookableFor(slot, q.ViewerID, now) {
			continue
		}

		day := slot.Date.Format(model.DateLayout)
		days, ok := result.PerMentorSlots[slot.MentorID]
		if !ok {
			days = make(map[string][]int)
			result.PerMentorSlots[slot.MentorID] = days
		}
		if _, seen := days[day]; !seen {
			result.PerDayMentorCount[day]++
		}
		days[day] = append(days[day], slot.Hour)
	}

	for _, days := range result.PerMentorSlots {
		for _, hours := range days {
			sort.Ints(hours)
		}
	}

	s.logger.Debug("Availability projected",
		zap.Int64("viewer_id", q.ViewerID),
		zap.Int("rows", len(rows)),
		zap.Int("mentors", len(result.PerMentorSlots)),
	)

	return result, nil
}

// bookableFor свободный слот, собственный холд зрителя или холд, у которого истёк TTL
func (s *AvailabilityService) bookableFor(slot *model.Slot, viewerID int64, now time.Time) bool {
	if !slot.StartTime(s.opts.loc).After(now) {
		return false
	}
	if slot.Available {
		return true
	}
	if !slot.IsHeld() {
		return false
	}
	return slot.HeldBy(viewerID) || slot.HoldExpired(now)
}
