package repository

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	slotserrors "escaperoom/internal/slots/errors"
	"escaperoom/pkg/db/memory"
	"escaperoom/pkg/db/sqlite"
	"escaperoom/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	new  func(t *testing.T) SlotRepository
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) SlotRepository {
			return NewMemorySlotRepository(memory.NewLocker(16))
		}},
		{"sqlite", func(t *testing.T) SlotRepository {
			db, err := sqlite.Open(filepath.Join(t.TempDir(), "slots.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return NewSQLiteSlotRepository(db)
		}},
	}
}

var base = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func newSlot(id, room string, hourOffset int) *model.Slot {
	start := base.Add(time.Duration(hourOffset) * time.Hour)
	return &model.Slot{ID: id, RoomID: room, StartTime: start, EndTime: start.Add(time.Hour)}
}

func TestSlotRepository_CreateAndFind(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.new(t)
			ctx := context.Background()

			require.NoError(t, repo.Create(ctx, newSlot("s-1", "r-101", 0)))

			got, err := repo.FindByID(ctx, "s-1")
			require.NoError(t, err)
			assert.Equal(t, "r-101", got.RoomID)
			assert.True(t, got.StartTime.Equal(base))
			assert.False(t, got.Booked)

			_, err = repo.FindByID(ctx, "missing")
			assert.ErrorIs(t, err, slotserrors.ErrNotFound)
		})
	}
}

func TestSlotRepository_CreateRejectsDuplicatesAndBadRanges(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.new(t)
			ctx := context.Background()

			require.NoError(t, repo.Create(ctx, newSlot("s-1", "r-101", 0)))

			err := repo.Create(ctx, newSlot("s-2", "r-101", 0))
			assert.ErrorIs(t, err, slotserrors.ErrDuplicate)

			bad := newSlot("s-3", "r-101", 2)
			bad.EndTime = bad.StartTime
			assert.ErrorIs(t, repo.Create(ctx, bad), slotserrors.ErrInvalidTimeRange)
		})
	}
}

func TestSlotRepository_ListOrderedByStart(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.new(t)
			ctx := context.Background()

			require.NoError(t, repo.Create(ctx, newSlot("s-3", "r-101", 2)))
			require.NoError(t, repo.Create(ctx, newSlot("s-1", "r-101", 0)))
			require.NoError(t, repo.Create(ctx, newSlot("x-1", "r-202", 1)))
			require.NoError(t, repo.Create(ctx, newSlot("s-2", "r-101", 1)))

			slots, err := repo.List(ctx, "r-101")
			require.NoError(t, err)
			ids := make([]string, 0, len(slots))
			for _, s := range slots {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, []string{"s-1", "s-2", "s-3"}, ids)

			all, err := repo.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 4)

			count, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 4, count)
		})
	}
}

func TestSlotRepository_TryBook(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.new(t)
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, newSlot("s-1", "r-101", 0)))

			ok, err := repo.TryBook(ctx, "s-1")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = repo.TryBook(ctx, "s-1")
			require.NoError(t, err)
			assert.False(t, ok, "second booking must not succeed")

			ok, err = repo.TryBook(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok, "missing slot is a rejection, not a fault")

			got, err := repo.FindByID(ctx, "s-1")
			require.NoError(t, err)
			assert.True(t, got.Booked)
		})
	}
}

func TestSlotRepository_TryBookConcurrentSingleWinner(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			repo := b.new(t)
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, newSlot("s-1", "r-101", 0)))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := repo.TryBook(ctx, "s-1")
					if assert.NoError(t, err) && ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, wins.Load())
		})
	}
}

func TestMemorySlotRepository_TryBookRollsBack(t *testing.T) {
	locker := memory.NewLocker(16)
	txm := memory.NewTxManager(locker)
	repo := NewMemorySlotRepository(locker)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newSlot("s-1", "r-101", 0)))

	err := txm.ExecuteTransaction(ctx, func(ctx context.Context) error {
		ok, err := repo.TryBook(ctx, "s-1")
		require.NoError(t, err)
		require.True(t, ok)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := repo.FindByID(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, got.Booked, "aborted transaction must not leave the slot booked")
}
