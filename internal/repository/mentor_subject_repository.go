package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/repository/base"
)

// MentorSubjectRepository справочник "ментор ведёт предмет" для фильтра доступности
type MentorSubjectRepository struct {
	*base.Repository
}

func NewMentorSubjectRepository(pool *pgxpool.Pool) *MentorSubjectRepository {
	return &MentorSubjectRepository{Repository: base.NewRepository(pool)}
}

// MentorsBySubject ID менторов, ведущих предмет
func (r *MentorSubjectRepository) MentorsBySubject(ctx context.Context, subjectID int64) ([]int64, error) {
	rows, err := r.Pool().Query(ctx, `
		SELECT mentor_id FROM mentor_subjects
		WHERE subject_id = $1
		ORDER BY mentor_id
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("get mentors by subject: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan mentor id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentor ids: %w", err)
	}

	return ids, nil
}

// Assign привязывает предмет к ментору; повторная привязка не ошибка
func (r *MentorSubjectRepository) Assign(ctx context.Context, ms model.MentorSubject) error {
	_, err := r.ExecAffected(ctx, `
		INSERT INTO mentor_subjects (mentor_id, subject_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, ms.MentorID, ms.SubjectID)
	if err != nil {
		return fmt.Errorf("assign subject: %w", err)
	}
	return nil
}

// Unassign отвязывает предмет от ментора
func (r *MentorSubjectRepository) Unassign(ctx context.Context, ms model.MentorSubject) error {
	_, err := r.ExecAffected(ctx, `
		DELETE FROM mentor_subjects WHERE mentor_id = $1 AND subject_id = $2
	`, ms.MentorID, ms.SubjectID)
	if err != nil {
		return fmt.Errorf("unassign subject: %w", err)
	}
	return nil
}
