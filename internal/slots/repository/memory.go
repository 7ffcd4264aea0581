package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	slotserrors "escaperoom/internal/slots/errors"
	"escaperoom/pkg/db/memory"
	"escaperoom/pkg/model"
)

type memorySlotRepository struct {
	locker *memory.Locker

	mu      sync.RWMutex
	slots   map[string]*model.Slot
	windows map[string]string // room|start|end -> slot id
}

// NewMemorySlotRepository returns a SlotRepository kept in process memory.
// Writes take the per-slot stripe from locker, the same stripe the hold
// repository takes, so booking and hold creation on one slot never interleave.
func NewMemorySlotRepository(locker *memory.Locker) SlotRepository {
	return &memorySlotRepository{
		locker:  locker,
		slots:   make(map[string]*model.Slot),
		windows: make(map[string]string),
	}
}

func windowKey(s *model.Slot) string {
	return fmt.Sprintf("%s|%d|%d", s.RoomID, s.StartTime.UnixNano(), s.EndTime.UnixNano())
}

func (r *memorySlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	if slot.ID == "" {
		return slotserrors.ErrInvalidID
	}
	if !slot.EndTime.After(slot.StartTime) {
		return slotserrors.ErrInvalidTimeRange
	}

	unlock := memory.Lock(ctx, r.locker, slot.ID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := windowKey(slot)
	if _, exists := r.slots[slot.ID]; exists {
		return fmt.Errorf("%w: %s", slotserrors.ErrDuplicate, slot.ID)
	}
	if _, exists := r.windows[key]; exists {
		return fmt.Errorf("%w: %s", slotserrors.ErrDuplicate, slot.ID)
	}

	stored := *slot
	stored.StartTime = slot.StartTime.UTC()
	stored.EndTime = slot.EndTime.UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	slot.CreatedAt = stored.CreatedAt
	r.slots[stored.ID] = &stored
	r.windows[key] = stored.ID

	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		delete(r.slots, stored.ID)
		delete(r.windows, key)
		r.mu.Unlock()
	})
	return nil
}

func (r *memorySlotRepository) FindByID(_ context.Context, id string) (*model.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
	}
	c := *slot
	return &c, nil
}

func (r *memorySlotRepository) List(_ context.Context, roomID string) ([]*model.Slot, error) {
	r.mu.RLock()
	out := make([]*model.Slot, 0, len(r.slots))
	for _, slot := range r.slots {
		if roomID != "" && slot.RoomID != roomID {
			continue
		}
		c := *slot
		out = append(out, &c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *memorySlotRepository) Count(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.slots)), nil
}

func (r *memorySlotRepository) TryBook(ctx context.Context, id string) (bool, error) {
	unlock := memory.Lock(ctx, r.locker, id)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok || slot.Booked {
		return false, nil
	}
	slot.Booked = true

	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		slot.Booked = false
		r.mu.Unlock()
	})
	return true, nil
}
