package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSlotBooked       EventType = "slot_booked"
	EventSessionCancelled EventType = "session_cancelled"
)

// Event уведомление для внешнего сервиса нотификаций (fire-and-forget)
type Event struct {
	Type           EventType    `json:"type"`
	SessionID      uuid.UUID    `json:"session_id"`
	MentorID       int64        `json:"mentor_id"`
	StudentID      int64        `json:"student_id"`
	StartTime      time.Time    `json:"start_time"`
	CancelledBy    *CancelledBy `json:"cancelled_by,omitempty"`
	RefundEligible bool         `json:"refund_eligible,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// SlotChange сообщение об изменении состояния слота для живого обновления календаря
type SlotChange struct {
	MentorID   int64     `json:"mentor_id"`
	Date       string    `json:"date"`
	Hour       int       `json:"hour"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewSlotChange(key SlotKey, state SlotState, at time.Time) SlotChange {
	return SlotChange{
		MentorID:   key.MentorID,
		Date:       key.Date.Format(DateLayout),
		Hour:       key.Hour,
		State:      state.Name(),
		OccurredAt: at,
	}
}

// HoldToken выдаётся клиенту после успешного холда
type HoldToken struct {
	SlotKey
	OwnerID   int64     `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
