package handler

import (
	"time"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

type SlotRequest struct {
	MentorID int64  `json:"mentor_id" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Hour     *int   `json:"hour" validate:"required,min=0,max=23"`
}

func (r SlotRequest) Key() model.SlotKey {
	date, _ := time.Parse(model.DateLayout, r.Date)
	return model.NewSlotKey(r.MentorID, date, *r.Hour)
}

type ConfirmRequest struct {
	SlotRequest
	SubjectID          int64    `json:"subject_id" validate:"omitempty,gt=0"`
	DurationMinutes    int      `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
	ParticipantCount   int      `json:"participant_count" validate:"omitempty,min=1"`
	PricePaid          int64    `json:"price_paid" validate:"min=0"`
	StudentDescription *string  `json:"student_description" validate:"omitempty,max=2000"`
	Contacts           []string `json:"contacts" validate:"omitempty,max=20,dive,required,max=200"`
	Address            *string  `json:"address" validate:"omitempty,max=500"`
}

func (r ConfirmRequest) Details() model.SessionDetails {
	return model.SessionDetails{
		SubjectID:          r.SubjectID,
		DurationMinutes:    r.DurationMinutes,
		ParticipantCount:   r.ParticipantCount,
		PricePaid:          r.PricePaid,
		StudentDescription: r.StudentDescription,
		Contacts:           r.Contacts,
		Address:            r.Address,
	}
}

type CancelRequest struct {
	CancelledBy string `json:"cancelled_by" validate:"required,oneof=student mentor"`
}

type TemplateEntryRequest struct {
	Weekday  *int    `json:"weekday" validate:"required,min=0,max=6"`
	Hour     *int    `json:"hour" validate:"required,min=0,max=23"`
	Modality string  `json:"modality" validate:"required,oneof=virtual in_person"`
	Location *string `json:"location" validate:"omitempty,max=500"`
}

type TemplateRequest struct {
	Entries []TemplateEntryRequest `json:"entries" validate:"max=168,dive"`
}

func (r TemplateRequest) Hours() []service.TemplateHour {
	hours := make([]service.TemplateHour, 0, len(r.Entries))
	for _, e := range r.Entries {
		hours = append(hours, service.TemplateHour{
			Weekday:  *e.Weekday,
			Hour:     *e.Hour,
			Modality: model.Modality(e.Modality),
			Location: e.Location,
		})
	}
	return hours
}

type AvailabilityRequest struct {
	From      string `json:"from" validate:"required,datetime=2006-01-02"`
	To        string `json:"to" validate:"required,datetime=2006-01-02"`
	SubjectID *int64 `json:"subject_id" validate:"omitempty,gt=0"`
}
