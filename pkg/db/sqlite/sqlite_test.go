package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_AppliesSchemaAndMigrations(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	version, err := d.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	var name string
	err = d.Conn(ctx).QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_holds_one_confirmed'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_holds_one_confirmed", name)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestExecuteTransaction_RollsBackOnError(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := d.ExecuteTransaction(ctx, func(ctx context.Context) error {
		_, err := d.Conn(ctx).ExecContext(ctx,
			"INSERT INTO slots (id, room_id, start_time, end_time, booked, created_at) VALUES ('s-1', 'r-1', 1, 2, 0, 0)")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, d.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM slots").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestExecuteTransaction_NestedJoinsOuter(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	err := d.ExecuteTransaction(ctx, func(outer context.Context) error {
		return d.ExecuteTransaction(outer, func(inner context.Context) error {
			assert.Same(t, d.Conn(outer), d.Conn(inner))
			_, err := d.Conn(inner).ExecContext(inner,
				"INSERT INTO slots (id, room_id, start_time, end_time, booked, created_at) VALUES ('s-1', 'r-1', 1, 2, 0, 0)")
			return err
		})
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, d.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM slots").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestConstraints(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	conn := d.Conn(ctx)

	_, err := conn.ExecContext(ctx,
		"INSERT INTO slots (id, room_id, start_time, end_time, booked, created_at) VALUES ('bad', 'r-1', 5, 5, 0, 0)")
	assert.True(t, IsConstraintViolation(err), "end must be after start")

	_, err = conn.ExecContext(ctx,
		"INSERT INTO slots (id, room_id, start_time, end_time, booked, created_at) VALUES ('s-1', 'r-1', 1, 2, 0, 0)")
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx,
		"INSERT INTO slots (id, room_id, start_time, end_time, booked, created_at) VALUES ('s-2', 'r-1', 1, 2, 0, 0)")
	assert.True(t, IsConstraintViolation(err), "same room and window must be unique")

	insertHold := "INSERT INTO holds (id, slot_id, holder_id, status, created_at, expires_at) VALUES (?, 's-1', 'u', 'CONFIRMED', 0, 0)"
	_, err = conn.ExecContext(ctx, insertHold, "h-1")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, insertHold, "h-2")
	assert.True(t, IsConstraintViolation(err), "only one CONFIRMED hold per slot")
}
