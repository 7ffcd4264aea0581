package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	slotserrors "escaperoom/internal/slots/errors"
	"escaperoom/pkg/db/sqlite"
	"escaperoom/pkg/model"
)

type sqliteSlotRepository struct {
	db *sqlite.DB
}

func NewSQLiteSlotRepository(db *sqlite.DB) SlotRepository {
	return &sqliteSlotRepository{db: db}
}

const slotColumns = "id, room_id, start_time, end_time, booked, created_at"

func (r *sqliteSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	_, err := r.db.Conn(ctx).ExecContext(ctx,
		`INSERT INTO slots (`+slotColumns+`) VALUES (?, ?, ?, ?, 0, ?)`,
		slot.ID, slot.RoomID, slot.StartTime.UnixNano(), slot.EndTime.UnixNano(), slot.CreatedAt.UnixNano(),
	)
	if err != nil {
		if sqlite.IsConstraintViolation(err) {
			if !slot.EndTime.After(slot.StartTime) {
				return slotserrors.ErrInvalidTimeRange
			}
			return fmt.Errorf("%w: %s", slotserrors.ErrDuplicate, slot.ID)
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *sqliteSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return slot, nil
}

func (r *sqliteSlotRepository) List(ctx context.Context, roomID string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	query := `SELECT ` + slotColumns + ` FROM slots`
	var args []any
	if roomID != "" {
		query += ` WHERE room_id = ?`
		args = append(args, roomID)
	}
	query += ` ORDER BY start_time ASC, id ASC`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

func (r *sqliteSlotRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var count int64
	if err := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM slots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count slots: %w", err)
	}
	return count, nil
}

func (r *sqliteSlotRepository) TryBook(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.db.Conn(ctx).ExecContext(ctx, `UPDATE slots SET booked = 1 WHERE id = ? AND booked = 0`, id)
	if err != nil {
		return false, fmt.Errorf("failed to book slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read booking result: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var (
		slot                  model.Slot
		start, end, createdAt int64
		booked                int
	)
	if err := row.Scan(&slot.ID, &slot.RoomID, &start, &end, &booked, &createdAt); err != nil {
		return nil, err
	}
	slot.StartTime = time.Unix(0, start).UTC()
	slot.EndTime = time.Unix(0, end).UTC()
	slot.CreatedAt = time.Unix(0, createdAt).UTC()
	slot.Booked = booked == 1
	return &slot, nil
}
