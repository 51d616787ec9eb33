package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
	"github.com/diegomarin28/KERANA-sub001/internal/repository/base"
)

const bulkInsertChunk = 500

const slotColumns = `mentor_id, slot_date, slot_hour, available, hold_owner_id, hold_expires_at, modality, location, created_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

// Get получает слот по ключу
func (r *SlotRepository) Get(ctx context.Context, key model.SlotKey) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots
		WHERE mentor_id = $1 AND slot_date = $2 AND slot_hour = $3
	`

	slot, err := scanSlot(r.Pool().QueryRow(ctx, query, key.MentorID, key.Date, key.Hour))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, model.ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}

	return slot, nil
}

// BulkInsert вставляет слоты пачками, пропуская уже существующие ключи.
// Возвращает число реально вставленных строк.
func (r *SlotRepository) BulkInsert(ctx context.Context, slots []*model.Slot) (int, error) {
	query := `
		INSERT INTO slots (mentor_id, slot_date, slot_hour, available, modality, location, created_at)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6)
		ON CONFLICT (mentor_id, slot_date, slot_hour) DO NOTHING
	`

	inserted := 0
	for start := 0; start < len(slots); start += bulkInsertChunk {
		end := min(start+bulkInsertChunk, len(slots))

		batch := &pgx.Batch{}
		for _, s := range slots[start:end] {
			batch.Queue(query, s.MentorID, s.Date, s.Hour, s.Modality, s.Location, s.CreatedAt)
		}

		br := r.Pool().SendBatch(ctx, batch)
		for range slots[start:end] {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return inserted, fmt.Errorf("bulk insert slots: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return inserted, fmt.Errorf("close batch: %w", err)
		}
	}

	return inserted, nil
}

// CompareAndSwap пишет next только если все три поля состояния равны expected.
// NULL сравнивается через IS NOT DISTINCT FROM.
func (r *SlotRepository) CompareAndSwap(ctx context.Context, key model.SlotKey, expected, next model.SlotState) (bool, error) {
	query := `
		UPDATE slots
		SET available = $4, hold_owner_id = $5, hold_expires_at = $6
		WHERE mentor_id = $1 AND slot_date = $2 AND slot_hour = $3
		  AND available = $7
		  AND hold_owner_id IS NOT DISTINCT FROM $8
		  AND hold_expires_at IS NOT DISTINCT FROM $9
	`

	affected, err := r.ExecAffected(ctx, query,
		key.MentorID, key.Date, key.Hour,
		next.Available, next.HoldOwnerID, next.HoldExpiresAt,
		expected.Available, expected.HoldOwnerID, expected.HoldExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("compare and swap slot: %w", err)
	}

	return affected == 1, nil
}

// FindExpiredHolds слоты с холдом, у которого истёк TTL, самые старые первыми
func (r *SlotRepository) FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots
		WHERE hold_owner_id IS NOT NULL
		  AND hold_expires_at < $1
		ORDER BY hold_expires_at
		LIMIT $2
	`

	rows, err := r.Pool().Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find expired holds: %w", err)
	}

	return collectSlots(rows)
}

// ListOpen свободные и удерживаемые слоты в диапазоне дат включительно.
// Пустой mentorIDs означает всех менторов.
func (r *SlotRepository) ListOpen(ctx context.Context, from, to time.Time, mentorIDs []int64) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots
		WHERE slot_date >= $1
		  AND slot_date <= $2
		  AND (available = TRUE OR hold_owner_id IS NOT NULL)
		  AND ($3::bigint[] IS NULL OR mentor_id = ANY($3))
		ORDER BY slot_date, mentor_id, slot_hour
	`

	var ids []int64
	if len(mentorIDs) > 0 {
		ids = mentorIDs
	}

	rows, err := r.Pool().Query(ctx, query, from, to, ids)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}

	return collectSlots(rows)
}

// DeleteBefore удаляет слоты с датой раньше date
func (r *SlotRepository) DeleteBefore(ctx context.Context, date time.Time) (int64, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM slots WHERE slot_date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("delete past slots: %w", err)
	}
	return affected, nil
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.MentorID,
		&slot.Date,
		&slot.Hour,
		&slot.Available,
		&slot.HoldOwnerID,
		&slot.HoldExpiresAt,
		&slot.Modality,
		&slot.Location,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.Date = model.TruncateDate(slot.Date)
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.Slot, error) {
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}
