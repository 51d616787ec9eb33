package model

// MentorSubject связь ментора с предметом, который он ведёт.
// Используется только для фильтра доступности по предмету.
type MentorSubject struct {
	MentorID  int64 `json:"mentor_id"`
	SubjectID int64 `json:"subject_id"`
}
