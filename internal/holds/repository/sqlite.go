package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	holdserrors "escaperoom/internal/holds/errors"
	"escaperoom/pkg/db/sqlite"
	"escaperoom/pkg/model"

	"github.com/google/uuid"
)

type sqliteHoldRepository struct {
	db *sqlite.DB
}

func NewSQLiteHoldRepository(db *sqlite.DB) HoldRepository {
	return &sqliteHoldRepository{db: db}
}

const holdColumns = "id, slot_id, holder_id, status, created_at, expires_at"

// insertHoldSQL checks and inserts in one statement. The NOT EXISTS clause is
// model.IsLive written in SQL: status HOLD and expires_at strictly after now.
const insertHoldSQL = `
INSERT INTO holds (` + holdColumns + `)
SELECT ?, s.id, ?, 'HOLD', ?, ?
FROM slots s
WHERE s.id = ?
  AND s.booked = 0
  AND NOT EXISTS (
    SELECT 1 FROM holds h
    WHERE h.slot_id = s.id AND h.status = 'HOLD' AND h.expires_at > ?
  )`

func (r *sqliteHoldRepository) TryCreateHold(ctx context.Context, slotID, holderID string, ttl time.Duration, now time.Time) (*model.Hold, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	hold := &model.Hold{
		ID:        uuid.New().String(),
		SlotID:    slotID,
		HolderID:  holderID,
		Status:    model.HoldActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, insertHoldSQL,
		hold.ID, holderID, hold.CreatedAt.UnixNano(), hold.ExpiresAt.UnixNano(),
		slotID, now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read hold insert result: %w", err)
	}
	if n != 1 {
		return nil, holdserrors.ErrHoldRejected
	}
	return hold, nil
}

func (r *sqliteHoldRepository) TryConfirm(ctx context.Context, holdID, holderID string, now time.Time) (*model.Hold, error) {
	hold, err := r.FindByID(ctx, holdID)
	if err != nil {
		if errors.Is(err, holdserrors.ErrHoldNotFound) {
			return nil, holdserrors.ErrHoldInvalid
		}
		return nil, err
	}
	if hold.HolderID != holderID || !model.IsLive(hold, now) {
		return nil, holdserrors.ErrHoldInvalid
	}
	return hold, nil
}

func (r *sqliteHoldRepository) CommitConfirm(ctx context.Context, holdID string) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE holds SET status = 'CONFIRMED' WHERE id = ? AND status = 'HOLD'`, holdID)
	if err != nil {
		if sqlite.IsConstraintViolation(err) {
			return fmt.Errorf("%w: slot already has a confirmed hold", holdserrors.ErrHoldInvalid)
		}
		return fmt.Errorf("failed to confirm hold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read confirm result: %w", err)
	}
	if n != 1 {
		return holdserrors.ErrHoldInvalid
	}
	return nil
}

func (r *sqliteHoldRepository) TryRelease(ctx context.Context, holdID, holderID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE holds SET status = 'RELEASED' WHERE id = ? AND holder_id = ? AND status = 'HOLD'`,
		holdID, holderID)
	if err != nil {
		return false, fmt.Errorf("failed to release hold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read release result: %w", err)
	}
	return n == 1, nil
}

func (r *sqliteHoldRepository) LiveHolderOf(ctx context.Context, slotID string, now time.Time) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE slot_id = ? AND status = 'HOLD'`, slotID)
	if err != nil {
		return "", false, fmt.Errorf("failed to query live holds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return "", false, fmt.Errorf("failed to decode hold: %w", err)
		}
		if model.IsLive(hold, now) {
			return hold.HolderID, true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("failed to iterate holds: %w", err)
	}
	return "", false, nil
}

func (r *sqliteHoldRepository) ConfirmedHolderOf(ctx context.Context, slotID string) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var holder string
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT holder_id FROM holds WHERE slot_id = ? AND status = 'CONFIRMED' LIMIT 1`, slotID).Scan(&holder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query confirmed hold: %w", err)
	}
	return holder, true, nil
}

func (r *sqliteHoldRepository) FindByID(ctx context.Context, holdID string) (*model.Hold, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = ?`, holdID)
	hold, err := scanHold(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", holdserrors.ErrHoldNotFound, holdID)
		}
		return nil, fmt.Errorf("failed to find hold: %w", err)
	}
	return hold, nil
}

func (r *sqliteHoldRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE holds SET status = 'EXPIRED' WHERE status = 'HOLD' AND expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to expire holds: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read expiry result: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(row rowScanner) (*model.Hold, error) {
	var (
		hold               model.Hold
		status             string
		createdAt, expires int64
	)
	if err := row.Scan(&hold.ID, &hold.SlotID, &hold.HolderID, &status, &createdAt, &expires); err != nil {
		return nil, err
	}
	hold.Status = model.HoldStatus(status)
	hold.CreatedAt = time.Unix(0, createdAt).UTC()
	hold.ExpiresAt = time.Unix(0, expires).UTC()
	return &hold, nil
}
