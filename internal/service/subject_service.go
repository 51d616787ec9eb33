package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

// SubjectService ведёт связи ментор-предмет, по которым фильтруется доступность
type SubjectService struct {
	catalog SubjectCatalog
	logger  *zap.Logger
}

func NewSubjectService(catalog SubjectCatalog, logger *zap.Logger) *SubjectService {
	return &SubjectService{
		catalog: catalog,
		logger:  logger.With(zap.String("service", "subject")),
	}
}

func (s *SubjectService) Assign(ctx context.Context, mentorID, subjectID int64) error {
	if mentorID <= 0 || subjectID <= 0 {
		return model.WithMessage(model.ErrValidation, "mentor_id and subject_id must be positive")
	}

	if err := s.catalog.Assign(ctx, model.MentorSubject{MentorID: mentorID, SubjectID: subjectID}); err != nil {
		return fmt.Errorf("assign subject: %w", err)
	}

	s.logger.Info("Subject assigned",
		zap.Int64("mentor_id", mentorID),
		zap.Int64("subject_id", subjectID),
	)
	return nil
}

func (s *SubjectService) Unassign(ctx context.Context, mentorID, subjectID int64) error {
	if err := s.catalog.Unassign(ctx, model.MentorSubject{MentorID: mentorID, SubjectID: subjectID}); err != nil {
		return fmt.Errorf("unassign subject: %w", err)
	}

	s.logger.Info("Subject unassigned",
		zap.Int64("mentor_id", mentorID),
		zap.Int64("subject_id", subjectID),
	)
	return nil
}

func (s *SubjectService) Mentors(ctx context.Context, subjectID int64) ([]int64, error) {
	return s.catalog.MentorsBySubject(ctx, subjectID)
}
