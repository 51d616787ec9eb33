package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/repository/base"
)

const templateColumns = `id, group_id, mentor_id, weekday, hour, modality, location, is_active, created_at`

// WeeklyTemplateRepository управляет недельными шаблонами менторов в базе данных
type WeeklyTemplateRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewWeeklyTemplateRepository создаёт новый репозиторий
func NewWeeklyTemplateRepository(pool *pgxpool.Pool, logger *zap.Logger) *WeeklyTemplateRepository {
	return &WeeklyTemplateRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// ListActive получает все активные записи всех менторов
func (r *WeeklyTemplateRepository) ListActive(ctx context.Context) ([]*model.WeeklyTemplateEntry, error) {
	query := `SELECT ` + templateColumns + `
		FROM weekly_template_entries
		WHERE is_active = TRUE
		ORDER BY mentor_id, weekday, hour
	`

	rows, err := r.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active template entries: %w", err)
	}

	return collectTemplateEntries(rows)
}

// ListByMentor получает шаблон ментора
func (r *WeeklyTemplateRepository) ListByMentor(ctx context.Context, mentorID int64) ([]*model.WeeklyTemplateEntry, error) {
	query := `SELECT ` + templateColumns + `
		FROM weekly_template_entries
		WHERE mentor_id = $1 AND is_active = TRUE
		ORDER BY weekday, hour
	`

	rows, err := r.Pool().Query(ctx, query, mentorID)
	if err != nil {
		return nil, fmt.Errorf("list template entries by mentor: %w", err)
	}

	return collectTemplateEntries(rows)
}

// Replace деактивирует текущий шаблон ментора и вставляет новый одной транзакцией
func (r *WeeklyTemplateRepository) Replace(ctx context.Context, mentorID int64, entries []*model.WeeklyTemplateEntry) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE weekly_template_entries SET is_active = FALSE
			WHERE mentor_id = $1 AND is_active = TRUE
		`, mentorID)
		if err != nil {
			return fmt.Errorf("deactivate template: %w", err)
		}

		insert := `
			INSERT INTO weekly_template_entries (group_id, mentor_id, weekday, hour, modality, location, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		for _, e := range entries {
			err := tx.QueryRow(ctx, insert,
				e.GroupID,
				e.MentorID,
				e.Weekday,
				e.Hour,
				e.Modality,
				e.Location,
				e.IsActive,
				e.CreatedAt,
			).Scan(&e.ID)
			if err != nil {
				return fmt.Errorf("insert template entry: %w", err)
			}
		}

		r.logger.Debug("Template replaced",
			zap.Int64("mentor_id", mentorID),
			zap.Int64("deactivated", tag.RowsAffected()),
			zap.Int("inserted", len(entries)),
		)

		return nil
	})
}

func collectTemplateEntries(rows pgx.Rows) ([]*model.WeeklyTemplateEntry, error) {
	defer rows.Close()

	var entries []*model.WeeklyTemplateEntry
	for rows.Next() {
		var e model.WeeklyTemplateEntry
		err := rows.Scan(
			&e.ID,
			&e.GroupID,
			&e.MentorID,
			&e.Weekday,
			&e.Hour,
			&e.Modality,
			&e.Location,
			&e.IsActive,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan template entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template entries: %w", err)
	}

	return entries, nil
}
