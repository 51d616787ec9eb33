package model

import (
	"time"

	"github.com/google/uuid"
)

// WeeklyTemplateEntry один час регулярного недельного расписания ментора
type WeeklyTemplateEntry struct {
	ID        int64     `json:"id"`
	GroupID   uuid.UUID `json:"group_id"` // все записи одного сохранения шаблона
	MentorID  int64     `json:"mentor_id"`
	Weekday   int       `json:"weekday"` // 0 = Sunday, 6 = Saturday
	Hour      int       `json:"hour"`    // 0-23
	Modality  Modality  `json:"modality"`
	Location  *string   `json:"location,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
