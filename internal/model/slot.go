package model

import (
	"fmt"
	"time"
)

// DateLayout формат даты слота в API и в ключах событий
const DateLayout = "2006-01-02"

type Modality string

const (
	ModalityVirtual  Modality = "virtual"
	ModalityInPerson Modality = "in_person"
)

// SlotKey однозначно идентифицирует слот: один слот на ментора на час в день
type SlotKey struct {
	MentorID int64     `json:"mentor_id"`
	Date     time.Time `json:"date"` // полночь UTC
	Hour     int       `json:"hour"` // 0-23
}

// NewSlotKey нормализует дату до полуночи UTC
func NewSlotKey(mentorID int64, date time.Time, hour int) SlotKey {
	return SlotKey{MentorID: mentorID, Date: TruncateDate(date), Hour: hour}
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%d/%s/%02d", k.MentorID, k.Date.Format(DateLayout), k.Hour)
}

// StartTime возвращает время начала слота в указанной таймзоне
func (k SlotKey) StartTime(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(k.Date.Year(), k.Date.Month(), k.Date.Day(), k.Hour, 0, 0, 0, loc)
}

// TruncateDate отбрасывает время и таймзону, оставляя календарную дату
func TruncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SlotState поля слота, по которым идёт compare-and-swap
type SlotState struct {
	Available     bool       `json:"available"`
	HoldOwnerID   *int64     `json:"hold_owner_id"`
	HoldExpiresAt *time.Time `json:"hold_expires_at"`
}

// AvailableState свободный слот
func AvailableState() SlotState {
	return SlotState{Available: true}
}

// BookedState слот занят подтверждённой сессией: недоступен и без полей холда
func BookedState() SlotState {
	return SlotState{Available: false}
}

// HeldState слот под холдом ownerID до expiresAt
func HeldState(ownerID int64, expiresAt time.Time) SlotState {
	owner := ownerID
	// Точность timestamptz в PostgreSQL: микросекунды
	exp := expiresAt.Truncate(time.Microsecond)
	return SlotState{Available: false, HoldOwnerID: &owner, HoldExpiresAt: &exp}
}

func (s SlotState) IsHeld() bool {
	return !s.Available && s.HoldOwnerID != nil
}

func (s SlotState) IsBooked() bool {
	return !s.Available && s.HoldOwnerID == nil
}

// HeldBy true если холд принадлежит ownerID (независимо от истечения)
func (s SlotState) HeldBy(ownerID int64) bool {
	return s.IsHeld() && *s.HoldOwnerID == ownerID
}

// HoldExpired true если холд есть и его TTL истёк к моменту now
func (s SlotState) HoldExpired(now time.Time) bool {
	return s.IsHeld() && s.HoldExpiresAt != nil && now.After(*s.HoldExpiresAt)
}

// Equal сравнивает все три поля, NULL-безопасно
func (s SlotState) Equal(other SlotState) bool {
	if s.Available != other.Available {
		return false
	}
	if (s.HoldOwnerID == nil) != (other.HoldOwnerID == nil) {
		return false
	}
	if s.HoldOwnerID != nil && *s.HoldOwnerID != *other.HoldOwnerID {
		return false
	}
	if (s.HoldExpiresAt == nil) != (other.HoldExpiresAt == nil) {
		return false
	}
	if s.HoldExpiresAt != nil && !s.HoldExpiresAt.Equal(*other.HoldExpiresAt) {
		return false
	}
	return true
}

func (s SlotState) Name() string {
	switch {
	case s.Available:
		return "available"
	case s.IsHeld():
		return "held"
	default:
		return "booked"
	}
}

type Slot struct {
	SlotKey
	SlotState
	Modality  Modality  `json:"modality"`
	Location  *string   `json:"location,omitempty"` // только для in_person
	CreatedAt time.Time `json:"created_at"`
}

func (s *Slot) Key() SlotKey {
	return s.SlotKey
}

func (s *Slot) State() SlotState {
	return s.SlotState
}
