// Package memory хранилище в памяти процесса с той же семантикой CAS, что и PostgreSQL.
// Используется в тестах и при STORE_DRIVER=memory; между процессами не разделяется.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

type Store struct {
	mu sync.Mutex

	slots     map[model.SlotKey]model.Slot
	sessions  map[uuid.UUID]model.Session
	refunds   map[uuid.UUID]model.RefundInstruction
	templates map[int64][]model.WeeklyTemplateEntry
	subjects  map[int64]map[int64]struct{} // subject -> mentors

	nextTemplateID int64
}

func NewStore() *Store {
	return &Store{
		slots:     make(map[model.SlotKey]model.Slot),
		sessions:  make(map[uuid.UUID]model.Session),
		refunds:   make(map[uuid.UUID]model.RefundInstruction),
		templates: make(map[int64][]model.WeeklyTemplateEntry),
		subjects:  make(map[int64]map[int64]struct{}),
	}
}

var (
	_ service.SlotStore      = (*Store)(nil)
	_ service.SessionStore   = (*Store)(nil)
	_ service.RefundOutbox   = (*Store)(nil)
	_ service.TemplateStore  = (*Store)(nil)
	_ service.SubjectCatalog = (*Store)(nil)
)

func normalizeKey(key model.SlotKey) model.SlotKey {
	return model.NewSlotKey(key.MentorID, key.Date, key.Hour)
}

func copyState(s model.SlotState) model.SlotState {
	out := model.SlotState{Available: s.Available}
	if s.HoldOwnerID != nil {
		v := *s.HoldOwnerID
		out.HoldOwnerID = &v
	}
	if s.HoldExpiresAt != nil {
		v := *s.HoldExpiresAt
		out.HoldExpiresAt = &v
	}
	return out
}

func cloneSlot(s model.Slot) *model.Slot {
	s.SlotState = copyState(s.SlotState)
	if s.Location != nil {
		v := *s.Location
		s.Location = &v
	}
	return &s
}

func (m *Store) Get(_ context.Context, key model.SlotKey) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[normalizeKey(key)]
	if !ok {
		return nil, model.ErrSlotNotFound
	}
	return cloneSlot(slot), nil
}

func (m *Store) BulkInsert(_ context.Context, slots []*model.Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, s := range slots {
		key := normalizeKey(s.SlotKey)
		if _, exists := m.slots[key]; exists {
			continue
		}
		stored := *cloneSlot(*s)
		stored.SlotKey = key
		stored.SlotState = model.AvailableState()
		m.slots[key] = stored
		inserted++
	}
	return inserted, nil
}

func (m *Store) CompareAndSwap(_ context.Context, key model.SlotKey, expected, next model.SlotState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = normalizeKey(key)
	slot, ok := m.slots[key]
	if !ok || !slot.SlotState.Equal(expected) {
		return false, nil
	}

	slot.SlotState = copyState(next)
	m.slots[key] = slot
	return true, nil
}

func (m *Store) FindExpiredHolds(_ context.Context, now time.Time, limit int) ([]*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Slot
	for _, s := range m.slots {
		if s.HoldOwnerID != nil && s.HoldExpiresAt != nil && s.HoldExpiresAt.Before(now) {
			out = append(out, cloneSlot(s))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].HoldExpiresAt.Before(*out[j].HoldExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) ListOpen(_ context.Context, from, to time.Time, mentorIDs []int64) ([]*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to = model.TruncateDate(from), model.TruncateDate(to)

	var filter map[int64]bool
	if len(mentorIDs) > 0 {
		filter = make(map[int64]bool, len(mentorIDs))
		for _, id := range mentorIDs {
			filter[id] = true
		}
	}

	var out []*model.Slot
	for _, s := range m.slots {
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		if !s.Available && s.HoldOwnerID == nil {
			continue
		}
		if filter != nil && !filter[s.MentorID] {
			continue
		}
		out = append(out, cloneSlot(s))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.MentorID != b.MentorID {
			return a.MentorID < b.MentorID
		}
		return a.Hour < b.Hour
	})
	return out, nil
}

func (m *Store) DeleteBefore(_ context.Context, date time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	date = model.TruncateDate(date)
	var deleted int64
	for key := range m.slots {
		if key.Date.Before(date) {
			delete(m.slots, key)
			deleted++
		}
	}
	return deleted, nil
}

func cloneSession(s model.Session) *model.Session {
	if s.Contacts != nil {
		s.Contacts = append([]string(nil), s.Contacts...)
	}
	return &s
}

func isActive(s model.Session) bool {
	return s.State == model.SessionStateConfirmed || s.State == model.SessionStateCompleted
}

func (m *Store) Create(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}

	key := session.SlotKey()
	for _, s := range m.sessions {
		if isActive(s) && s.SlotKey() == key {
			return model.WithMessage(model.ErrSlotUnavailable, "slot already has an active session")
		}
	}

	stored := *cloneSession(*session)
	stored.SlotDate = key.Date
	m.sessions[session.ID] = stored
	return nil
}

func (m *Store) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *Store) GetActiveBySlot(_ context.Context, key model.SlotKey) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = normalizeKey(key)
	for _, s := range m.sessions {
		if isActive(s) && s.SlotKey() == key {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

// Cancel атомарен относительно остальных операций хранилища, как транзакция в PostgreSQL
func (m *Store) Cancel(_ context.Context, p service.CancelParams) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[p.SessionID]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if s.State != model.SessionStateConfirmed || !s.StartTime.After(p.At) {
		return nil, model.WithMessage(model.ErrSessionNotCancellable,
			fmt.Sprintf("session is %s or already started", s.State))
	}

	by := p.CancelledBy
	at := p.At
	s.State = model.SessionStateCancelled
	s.CancelledBy = &by
	s.CancelledAt = &at
	s.UpdatedAt = at
	m.sessions[s.ID] = s

	key := s.SlotKey()
	if slot, ok := m.slots[key]; ok && slot.IsBooked() {
		slot.SlotState = model.AvailableState()
		m.slots[key] = slot
	}

	if p.Refund != nil {
		m.refunds[p.Refund.ID] = *p.Refund
	}

	return cloneSession(s), nil
}

func (m *Store) ListPending(_ context.Context, limit int) ([]*model.RefundInstruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.RefundInstruction
	for _, r := range m.refunds {
		if r.PublishedAt == nil {
			ri := r
			out = append(out, &ri)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.refunds[id]
	if !ok {
		return fmt.Errorf("refund %s not found", id)
	}
	r.PublishedAt = &at
	m.refunds[id] = r
	return nil
}

func (m *Store) ListActive(_ context.Context) ([]*model.WeeklyTemplateEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mentors := make([]int64, 0, len(m.templates))
	for id := range m.templates {
		mentors = append(mentors, id)
	}
	sort.Slice(mentors, func(i, j int) bool { return mentors[i] < mentors[j] })

	var out []*model.WeeklyTemplateEntry
	for _, id := range mentors {
		out = append(out, m.activeEntries(id)...)
	}
	return out, nil
}

func (m *Store) ListByMentor(_ context.Context, mentorID int64) ([]*model.WeeklyTemplateEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.activeEntries(mentorID), nil
}

func (m *Store) activeEntries(mentorID int64) []*model.WeeklyTemplateEntry {
	var out []*model.WeeklyTemplateEntry
	for _, e := range m.templates[mentorID] {
		if e.IsActive {
			entry := e
			out = append(out, &entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

func (m *Store) Replace(_ context.Context, mentorID int64, entries []*model.WeeklyTemplateEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]model.WeeklyTemplateEntry, 0, len(entries))
	for _, e := range entries {
		m.nextTemplateID++
		e.ID = m.nextTemplateID
		stored = append(stored, *e)
	}
	m.templates[mentorID] = stored
	return nil
}

func (m *Store) MentorsBySubject(_ context.Context, subjectID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.subjects[subjectID]))
	for id := range m.subjects[subjectID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Store) Assign(_ context.Context, ms model.MentorSubject) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mentors, ok := m.subjects[ms.SubjectID]
	if !ok {
		mentors = make(map[int64]struct{})
		m.subjects[ms.SubjectID] = mentors
	}
	mentors[ms.MentorID] = struct{}{}
	return nil
}

func (m *Store) Unassign(_ context.Context, ms model.MentorSubject) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subjects[ms.SubjectID], ms.MentorID)
	return nil
}
