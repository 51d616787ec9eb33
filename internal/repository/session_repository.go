package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/repository/base"
	"github.com/diegomarin28/KERANA-sub001/internal/service"
)

const sessionColumns = `id, mentor_id, student_id, subject_id, slot_date, slot_hour, start_time,
	duration_minutes, participant_count, price_paid, modality, state, cancelled_by,
	student_description, contacts, address, created_at, updated_at, cancelled_at`

type SessionRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Create сохраняет подтверждённую сессию. Вторая действующая сессия на тот же слот
// отсекается уникальным индексом и возвращается как ErrSlotUnavailable.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (id, mentor_id, student_id, subject_id, slot_date, slot_hour, start_time,
			duration_minutes, participant_count, price_paid, modality, state,
			student_description, contacts, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.Pool().Exec(ctx, query,
		s.ID,
		s.MentorID,
		s.StudentID,
		s.SubjectID,
		s.SlotDate,
		s.SlotHour,
		s.StartTime,
		s.DurationMinutes,
		s.ParticipantCount,
		s.PricePaid,
		s.Modality,
		s.State,
		s.StudentDescription,
		s.Contacts,
		s.Address,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return model.Wrap(model.ErrSlotUnavailable, err)
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByID получает сессию по ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return session, nil
}

// GetActiveBySlot действующая (confirmed или completed) сессия слота; nil если её нет
func (r *SessionRepository) GetActiveBySlot(ctx context.Context, key model.SlotKey) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE mentor_id = $1 AND slot_date = $2 AND slot_hour = $3
		  AND state IN ('confirmed', 'completed')
	`

	session, err := scanSession(r.Pool().QueryRow(ctx, query, key.MentorID, key.Date, key.Hour))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by slot: %w", err)
	}

	return session, nil
}

// Cancel в одной транзакции отменяет сессию, возвращает слот в пул и пишет инструкцию возврата
func (r *SessionRepository) Cancel(ctx context.Context, p service.CancelParams) (*model.Session, error) {
	var cancelled *model.Session

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE sessions
			SET state = 'cancelled', cancelled_by = $2, cancelled_at = $3, updated_at = $3
			WHERE id = $1 AND state = 'confirmed' AND start_time > $3
			RETURNING ` + sessionColumns

		session, err := scanSession(tx.QueryRow(ctx, query, p.SessionID, p.CancelledBy, p.At))
		if err != nil {
			if base.IsNotFound(err) {
				return r.notCancellable(ctx, tx, p.SessionID)
			}
			return fmt.Errorf("cancel session: %w", err)
		}

		// Слот мог быть уже удалён ретенцией; это не мешает отмене
		tag, err := tx.Exec(ctx, `
			UPDATE slots
			SET available = TRUE, hold_owner_id = NULL, hold_expires_at = NULL
			WHERE mentor_id = $1 AND slot_date = $2 AND slot_hour = $3
			  AND available = FALSE AND hold_owner_id IS NULL
		`, session.MentorID, session.SlotDate, session.SlotHour)
		if err != nil {
			return fmt.Errorf("release slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			r.logger.Warn("Cancelled session had no booked slot to release",
				zap.String("session_id", session.ID.String()),
				zap.String("slot", session.SlotKey().String()),
			)
		}

		if p.Refund != nil {
			_, err = tx.Exec(ctx, `
				INSERT INTO refund_instructions (id, session_id, student_id, eligible, amount, cancelled_by, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, p.Refund.ID, p.Refund.SessionID, p.Refund.StudentID, p.Refund.Eligible,
				p.Refund.Amount, p.Refund.CancelledBy, p.Refund.CreatedAt)
			if err != nil {
				return fmt.Errorf("record refund instruction: %w", err)
			}
		}

		cancelled = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

func (r *SessionRepository) notCancellable(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var state model.SessionState
	err := tx.QueryRow(ctx, `SELECT state FROM sessions WHERE id = $1`, id).Scan(&state)
	if err != nil {
		if base.IsNotFound(err) {
			return model.ErrSessionNotFound
		}
		return fmt.Errorf("get session state: %w", err)
	}
	return model.WithMessage(model.ErrSessionNotCancellable, fmt.Sprintf("session is %s or already started", state))
}

// ListPending неопубликованные инструкции возврата, старые первыми
func (r *SessionRepository) ListPending(ctx context.Context, limit int) ([]*model.RefundInstruction, error) {
	query := `
		SELECT id, session_id, student_id, eligible, amount, cancelled_by, created_at, published_at
		FROM refund_instructions
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*model.RefundInstruction
	for rows.Next() {
		var ri model.RefundInstruction
		err := rows.Scan(
			&ri.ID,
			&ri.SessionID,
			&ri.StudentID,
			&ri.Eligible,
			&ri.Amount,
			&ri.CancelledBy,
			&ri.CreatedAt,
			&ri.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		refunds = append(refunds, &ri)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refunds: %w", err)
	}

	return refunds, nil
}

func (r *SessionRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.ExecAffected(ctx, `UPDATE refund_instructions SET published_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark refund published: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.MentorID,
		&s.StudentID,
		&s.SubjectID,
		&s.SlotDate,
		&s.SlotHour,
		&s.StartTime,
		&s.DurationMinutes,
		&s.ParticipantCount,
		&s.PricePaid,
		&s.Modality,
		&s.State,
		&s.CancelledBy,
		&s.StudentDescription,
		&s.Contacts,
		&s.Address,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	s.SlotDate = model.TruncateDate(s.SlotDate)
	return &s, nil
}
