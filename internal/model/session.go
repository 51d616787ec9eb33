package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionStateConfirmed SessionState = "confirmed"
	SessionStateCompleted SessionState = "completed" // выставляется внешним планировщиком
	SessionStateCancelled SessionState = "cancelled"
)

type CancelledBy string

const (
	CancelledByStudent CancelledBy = "student"
	CancelledByMentor  CancelledBy = "mentor"
)

func (c CancelledBy) Valid() bool {
	return c == CancelledByStudent || c == CancelledByMentor
}

// Session подтверждённая запись, занимающая ровно один слот
type Session struct {
	ID                 uuid.UUID    `json:"id"`
	MentorID           int64        `json:"mentor_id"`
	StudentID          int64        `json:"student_id"` // тот, кто держал холд
	SubjectID          int64        `json:"subject_id"`
	SlotDate           time.Time    `json:"slot_date"`
	SlotHour           int          `json:"slot_hour"`
	StartTime          time.Time    `json:"start_time"`
	DurationMinutes    int          `json:"duration_minutes"`
	ParticipantCount   int          `json:"participant_count"`
	PricePaid          int64        `json:"price_paid"` // в центах
	Modality           Modality     `json:"modality"`
	State              SessionState `json:"state"`
	CancelledBy        *CancelledBy `json:"cancelled_by,omitempty"`
	StudentDescription *string      `json:"student_description,omitempty"`
	Contacts           []string     `json:"contacts,omitempty"` // для virtual
	Address            *string      `json:"address,omitempty"`  // для in_person
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty"`
}

func (s *Session) SlotKey() SlotKey {
	return NewSlotKey(s.MentorID, s.SlotDate, s.SlotHour)
}

// SessionDetails данные, которые клиент передаёт при подтверждении
type SessionDetails struct {
	SubjectID          int64
	DurationMinutes    int
	ParticipantCount   int
	PricePaid          int64
	StudentDescription *string
	Contacts           []string
	Address            *string
}

// RefundInstruction решение о возврате для внешнего платёжного сервиса
type RefundInstruction struct {
	ID          uuid.UUID   `json:"id"`
	SessionID   uuid.UUID   `json:"session_id"`
	StudentID   int64       `json:"student_id"`
	Eligible    bool        `json:"refund_eligible"`
	Amount      int64       `json:"amount"`
	CancelledBy CancelledBy `json:"cancelled_by"`
	CreatedAt   time.Time   `json:"created_at"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
}

// CancellationResult результат отмены сессии
type CancellationResult struct {
	RefundEligible bool               `json:"refund_eligible"`
	Refund         *RefundInstruction `json:"refund"`
	Session        *Session           `json:"session"`
}
